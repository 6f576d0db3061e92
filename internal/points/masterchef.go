// Package points implements the MasterChefPoint ledger: per-user loyalty
// points, increased only by the ledger owner.
package points

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized is returned when a non-owner adds points.
	ErrUnauthorized = errors.New("points: caller is not the owner")

	// ErrInvalidAmount is returned for nil or non-positive point amounts.
	ErrInvalidAmount = errors.New("points: amount must be positive")

	// ErrUnknownLedger is returned by a Registry without a ledger at an address.
	ErrUnknownLedger = errors.New("points: unknown ledger")
)

// MasterChef is an append-only points ledger.
type MasterChef struct {
	address common.Address
	owner   common.Address

	mu     sync.RWMutex
	points map[common.Address]*big.Int
	total  *big.Int
}

// NewMasterChef creates an empty ledger owned by owner.
func NewMasterChef(address, owner common.Address) *MasterChef {
	return &MasterChef{
		address: address,
		owner:   owner,
		points:  make(map[common.Address]*big.Int),
		total:   new(big.Int),
	}
}

// Address returns the ledger address.
func (m *MasterChef) Address() common.Address { return m.address }

// Owner returns the ledger owner.
func (m *MasterChef) Owner() common.Address { return m.owner }

// AddUserPoints credits amount points to user. Only the owner may call it.
func (m *MasterChef) AddUserPoints(_ context.Context, caller, user common.Address, amount *big.Int) error {
	if caller != m.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.points[user]; ok {
		p.Add(p, amount)
	} else {
		m.points[user] = new(big.Int).Set(amount)
	}
	m.total.Add(m.total, amount)
	return nil
}

// UserPoints returns the points of user, zero if none.
func (m *MasterChef) UserPoints(_ context.Context, user common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.points[user]; ok {
		return new(big.Int).Set(p), nil
	}
	return new(big.Int), nil
}

// TotalPoints returns the sum of all points issued.
func (m *MasterChef) TotalPoints() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.total)
}

// Registry holds the deployed ledgers by address.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]*MasterChef
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[common.Address]*MasterChef)}
}

// Deploy registers a new ledger at address owned by owner. An existing
// ledger at the same address is returned unchanged.
func (r *Registry) Deploy(address, owner common.Address) *MasterChef {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.ledgers[address]; ok {
		return m
	}
	m := NewMasterChef(address, owner)
	r.ledgers[address] = m
	return m
}

// Get returns the ledger at address.
func (r *Registry) Get(address common.Address) (*MasterChef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.ledgers[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, address.Hex())
	}
	return m, nil
}
