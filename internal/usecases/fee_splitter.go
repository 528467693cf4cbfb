package usecases

import (
	"fmt"
	"math/big"

	"chain-route.backend/internal/domain/entities"
	"chain-route.backend/pkg/units"
)

// FeeSplitter deterministically divides a gross token amount into the
// merchant and treasury legs. The treasury leg is the floor of
// gross * percent / 100 in base units; the merchant receives the
// remainder, so the two legs always sum exactly to the gross amount.
type FeeSplitter struct {
	percent int64
}

// NewFeeSplitter creates a splitter with the given treasury fee percentage
func NewFeeSplitter(percent int64) *FeeSplitter {
	return &FeeSplitter{percent: percent}
}

// Split computes both legs for a gross decimal amount at the token's
// on-chain precision
func (f *FeeSplitter) Split(amount string, decimals uint8) (*entities.FeeSplit, error) {
	if f.percent < 0 || f.percent > 100 {
		return nil, fmt.Errorf("fee percent %d out of range", f.percent)
	}

	total, err := units.Parse(amount, decimals)
	if err != nil {
		return nil, err
	}

	treasury := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(f.percent)), big.NewInt(100))
	psp := new(big.Int).Sub(total, treasury)

	return &entities.FeeSplit{
		Total:         amount,
		Percent:       f.percent,
		PSP:           units.Format(psp, decimals),
		Treasury:      units.Format(treasury, decimals),
		PSPUnits:      psp.String(),
		TreasuryUnits: treasury.String(),
	}, nil
}
