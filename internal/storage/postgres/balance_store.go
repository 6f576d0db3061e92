package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Upsert inserts or replaces the balance of (launch_event, user).
func (s *BalanceStore) Upsert(ctx context.Context, b *domain.UserBalance) (err error) {
	if b == nil || b.LaunchEvent == (common.Address{}) || b.Balance == nil || b.Balance.Sign() < 0 {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("upsert_balance", start, err) }(time.Now())

	query := `
		INSERT INTO user_balances (launch_event, user_address, balance, claimed, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (launch_event, user_address) DO UPDATE SET
			balance = EXCLUDED.balance,
			claimed = EXCLUDED.claimed,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		addressText(b.LaunchEvent),
		addressText(b.User),
		numeric(b.Balance),
		b.Claimed,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// Get retrieves the balance of a user. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(ctx context.Context, launchEvent, user common.Address) (b *domain.UserBalance, err error) {
	defer func(start time.Time) { observe("get_balance", start, err) }(time.Now())

	query := `
		SELECT launch_event, user_address, balance, claimed, updated_at
		FROM user_balances
		WHERE launch_event = $1 AND user_address = $2
	`

	b, err = scanBalance(s.pool.QueryRow(ctx, query, addressText(launchEvent), addressText(user)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// ListByLaunchEvent retrieves all balances of a launch event, ordered by user.
func (s *BalanceStore) ListByLaunchEvent(ctx context.Context, launchEvent common.Address) (balances []*domain.UserBalance, err error) {
	defer func(start time.Time) { observe("list_balances", start, err) }(time.Now())

	query := `
		SELECT launch_event, user_address, balance, claimed, updated_at
		FROM user_balances
		WHERE launch_event = $1
		ORDER BY user_address ASC
	`

	rows, err := s.pool.Query(ctx, query, addressText(launchEvent))
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return balances, nil
}

// scanBalance scans a single row into a UserBalance.
func scanBalance(row pgx.Row) (*domain.UserBalance, error) {
	var (
		launchEvent, user string
		balance           pgtype.Numeric
		b                 domain.UserBalance
	)
	if err := row.Scan(&launchEvent, &user, &balance, &b.Claimed, &b.UpdatedAt); err != nil {
		return nil, err
	}

	v, err := bigFromNumeric(balance)
	if err != nil {
		return nil, err
	}
	b.LaunchEvent = common.HexToAddress(launchEvent)
	b.User = common.HexToAddress(user)
	b.Balance = v
	return &b, nil
}
