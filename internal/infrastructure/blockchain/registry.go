package blockchain

import (
	"fmt"

	"chain-route.backend/internal/config"
	domainerrors "chain-route.backend/internal/domain/errors"
)

// Registry holds one adapter per supported chain. Chain selection is a
// lookup, not branching.
type Registry struct {
	adapters map[string]*ChainAdapter
	order    []string
}

// NewRegistry dials every configured chain
func NewRegistry(chains []config.ChainConfig) (*Registry, error) {
	r := &Registry{adapters: make(map[string]*ChainAdapter, len(chains))}
	for _, cc := range chains {
		adapter, err := NewChainAdapter(cc)
		if err != nil {
			return nil, err
		}
		r.adapters[cc.Name] = adapter
		r.order = append(r.order, cc.Name)
	}
	return r, nil
}

// NewRegistryWithAdapters builds a registry from prebuilt adapters (tests)
func NewRegistryWithAdapters(adapters ...*ChainAdapter) *Registry {
	r := &Registry{adapters: make(map[string]*ChainAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
		r.order = append(r.order, a.Name())
	}
	return r
}

// Get returns the adapter for a chain
func (r *Registry) Get(chain string) (*ChainAdapter, error) {
	adapter, ok := r.adapters[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedChain, chain)
	}
	return adapter, nil
}

// Chains returns the registered chain names in registration order
func (r *Registry) Chains() []string {
	return append([]string(nil), r.order...)
}
