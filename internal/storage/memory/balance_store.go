package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/storage"
)

type balanceKey struct {
	launchEvent common.Address
	user        common.Address
}

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.RWMutex
	data map[balanceKey]*domain.UserBalance
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		data: make(map[balanceKey]*domain.UserBalance),
	}
}

var _ storage.BalanceStore = (*BalanceStore)(nil)

// Upsert inserts or replaces the balance of (launch_event, user).
func (s *BalanceStore) Upsert(_ context.Context, b *domain.UserBalance) error {
	if b == nil || b.LaunchEvent == (common.Address{}) || b.Balance == nil || b.Balance.Sign() < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[balanceKey{b.LaunchEvent, b.User}] = copyBalance(b)
	return nil
}

// Get retrieves the balance of a user. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(_ context.Context, launchEvent, user common.Address) (*domain.UserBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[balanceKey{launchEvent, user}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyBalance(b), nil
}

// ListByLaunchEvent retrieves all balances of a launch event, ordered by user.
func (s *BalanceStore) ListByLaunchEvent(_ context.Context, launchEvent common.Address) ([]*domain.UserBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.UserBalance
	for k, b := range s.data {
		if k.launchEvent == launchEvent {
			result = append(result, copyBalance(b))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].User.Cmp(result[j].User) < 0
	})
	return result, nil
}
