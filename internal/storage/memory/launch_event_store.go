package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/storage"
)

// LaunchEventStore is an in-memory implementation of storage.LaunchEventStore.
type LaunchEventStore struct {
	mu      sync.RWMutex
	data    map[common.Address]*domain.LaunchEventRecord // keyed by address
	byToken map[common.Address]common.Address
}

// NewLaunchEventStore creates a new in-memory launch event store.
func NewLaunchEventStore() *LaunchEventStore {
	return &LaunchEventStore{
		data:    make(map[common.Address]*domain.LaunchEventRecord),
		byToken: make(map[common.Address]common.Address),
	}
}

var _ storage.LaunchEventStore = (*LaunchEventStore)(nil)

// Insert adds a new launch event. Returns ErrDuplicateKey if the address or token exists.
func (s *LaunchEventStore) Insert(_ context.Context, r *domain.LaunchEventRecord) error {
	if r == nil || r.Address == (common.Address{}) || r.Token == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Address]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byToken[r.Token]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.Address] = copyRecord(r)
	s.byToken[r.Token] = r.Address
	return nil
}

// GetByToken retrieves the launch event of a token. Returns ErrNotFound if not exists.
func (s *LaunchEventStore) GetByToken(_ context.Context, token common.Address) (*domain.LaunchEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, exists := s.byToken[token]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(s.data[addr]), nil
}

// GetByAddress retrieves a launch event by its address. Returns ErrNotFound if not exists.
func (s *LaunchEventStore) GetByAddress(_ context.Context, address common.Address) (*domain.LaunchEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// List retrieves launch events ordered by created_at ASC, then address.
func (s *LaunchEventStore) List(_ context.Context, offset, limit int) ([]*domain.LaunchEventRecord, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	result := make([]*domain.LaunchEventRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRecord(r))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Address.Cmp(result[j].Address) < 0
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
