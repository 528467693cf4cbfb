package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	got, err := Parse("100.5", 6)
	require.NoError(t, err)
	require.Equal(t, "100500000", got.String())

	got, err = Parse("100", 6)
	require.NoError(t, err)
	require.Equal(t, "100000000", got.String())

	got, err = Parse("0.000001", 6)
	require.NoError(t, err)
	require.Equal(t, "1", got.String())

	got, err = Parse(".5", 2)
	require.NoError(t, err)
	require.Equal(t, "50", got.String())
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse("", 6)
	require.Error(t, err)

	_, err = Parse("-1", 6)
	require.Error(t, err, "negative amounts never settle")

	_, err = Parse("1.2345678", 6)
	require.Error(t, err, "excess precision must not be truncated")

	_, err = Parse("abc", 6)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "100.5", Format(big.NewInt(100500000), 6))
	require.Equal(t, "100", Format(big.NewInt(100000000), 6))
	require.Equal(t, "0.000001", Format(big.NewInt(1), 6))
	require.Equal(t, "42", Format(big.NewInt(42), 0))
	require.Equal(t, "0", Format(nil, 6))
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, amount := range []string{"100.00", "0.01", "999999.999999", "1"} {
		units, err := Parse(amount, 6)
		require.NoError(t, err)
		back, err := Parse(Format(units, 6), 6)
		require.NoError(t, err)
		require.Zero(t, units.Cmp(back), "amount %s", amount)
	}
}
