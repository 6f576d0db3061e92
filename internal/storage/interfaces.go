package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

// LaunchEventStore provides access to launch_events storage.
type LaunchEventStore interface {
	// Insert adds a new launch event. Returns ErrDuplicateKey if the address or token exists.
	Insert(ctx context.Context, r *domain.LaunchEventRecord) error

	// GetByToken retrieves the launch event of a token. Returns ErrNotFound if not exists.
	GetByToken(ctx context.Context, token common.Address) (*domain.LaunchEventRecord, error)

	// GetByAddress retrieves a launch event by its address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address common.Address) (*domain.LaunchEventRecord, error)

	// List retrieves launch events ordered by created_at ASC, then address.
	List(ctx context.Context, offset, limit int) ([]*domain.LaunchEventRecord, error)
}

// BalanceStore provides access to user_balances storage.
// Unlike the append-only stores it keeps only the latest balance per user.
type BalanceStore interface {
	// Upsert inserts or replaces the balance of (launch_event, user).
	Upsert(ctx context.Context, b *domain.UserBalance) error

	// Get retrieves the balance of a user. Returns ErrNotFound if not exists.
	Get(ctx context.Context, launchEvent, user common.Address) (*domain.UserBalance, error)

	// ListByLaunchEvent retrieves all balances of a launch event, ordered by user.
	ListByLaunchEvent(ctx context.Context, launchEvent common.Address) ([]*domain.UserBalance, error)
}

// EventLogStore provides access to launch_event_log storage.
type EventLogStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.LedgerEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.LedgerEvent) error

	// GetByLaunchEvent retrieves all events of a launch event, ordered by sequence ASC.
	GetByLaunchEvent(ctx context.Context, launchEvent common.Address) ([]*domain.LedgerEvent, error)

	// GetByUser retrieves all events of a user in a launch event, ordered by sequence ASC.
	GetByUser(ctx context.Context, launchEvent, user common.Address) ([]*domain.LedgerEvent, error)
}
