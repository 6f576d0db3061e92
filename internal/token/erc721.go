package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Collection is an in-memory ERC-721 ownership table. Only the ownership
// queries the allocation policy needs are exposed, plus Mint.
type Collection struct {
	address common.Address

	mu     sync.RWMutex
	owners map[string]common.Address // token id (decimal) -> owner
	counts map[common.Address]int64
}

// NewCollection creates an empty collection.
func NewCollection(address common.Address) *Collection {
	return &Collection{
		address: address,
		owners:  make(map[string]common.Address),
		counts:  make(map[common.Address]int64),
	}
}

// Compile-time interface check.
var _ BalanceReader = (*Collection)(nil)

// Address returns the collection address.
func (c *Collection) Address() common.Address { return c.address }

// Mint assigns tokenID to to. Returns ErrAlreadyMinted if the id is taken.
func (c *Collection) Mint(_ context.Context, to common.Address, tokenID *big.Int) error {
	if tokenID == nil || tokenID.Sign() < 0 {
		return ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := tokenID.String()
	if _, exists := c.owners[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, key)
	}
	c.owners[key] = to
	c.counts[to]++
	return nil
}

// BalanceOf returns the number of tokens owned by owner.
func (c *Collection) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return big.NewInt(c.counts[owner]), nil
}

// OwnerOf returns the owner of tokenID and whether it exists.
func (c *Collection) OwnerOf(_ context.Context, tokenID *big.Int) (common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[tokenID.String()]
	return owner, ok
}
