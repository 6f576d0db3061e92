package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryRegistry maps token addresses to in-memory ledgers.
type MemoryRegistry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]*Ledger
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ledgers: make(map[common.Address]*Ledger)}
}

// Compile-time interface check.
var _ Registry = (*MemoryRegistry)(nil)

// GetOrCreate returns the ledger at addr, creating an empty one if missing.
func (r *MemoryRegistry) GetOrCreate(addr common.Address, symbol string) *Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.ledgers[addr]; ok {
		return l
	}
	l := NewLedger(addr, symbol)
	r.ledgers[addr] = l
	return l
}

// Ledger returns the concrete ledger at addr.
func (r *MemoryRegistry) Ledger(addr common.Address) (*Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[addr]
	return l, ok
}

// ERC20 implements Registry.
func (r *MemoryRegistry) ERC20(addr common.Address) (ERC20, error) {
	l, ok := r.Ledger(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return l, nil
}
