package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/storage"
)

// LaunchEventStore implements storage.LaunchEventStore using PostgreSQL.
type LaunchEventStore struct {
	pool *Pool
}

// NewLaunchEventStore creates a new LaunchEventStore.
func NewLaunchEventStore(pool *Pool) *LaunchEventStore {
	return &LaunchEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LaunchEventStore = (*LaunchEventStore)(nil)

const selectLaunchEventSQL = `
	SELECT address, token, issuer, auction_start_ms, token_amount, incentives_percent,
		floor_price, max_withdraw_penalty, fixed_withdraw_penalty, max_allocation,
		user_timelock_ms, issuer_timelock_ms, no_fee_ms, phase_one_ms, phase_two_ms, created_at
	FROM launch_events
`

// Insert adds a new launch event. Returns ErrDuplicateKey if the address or token exists.
func (s *LaunchEventStore) Insert(ctx context.Context, r *domain.LaunchEventRecord) (err error) {
	if r == nil || r.Address == (common.Address{}) || r.Token == (common.Address{}) {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_launch_event", start, err) }(time.Now())

	query := `
		INSERT INTO launch_events (
			address, token, issuer, auction_start_ms, token_amount, incentives_percent,
			floor_price, max_withdraw_penalty, fixed_withdraw_penalty, max_allocation,
			user_timelock_ms, issuer_timelock_ms, no_fee_ms, phase_one_ms, phase_two_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	p := r.Params
	_, err = s.pool.Exec(ctx, query,
		addressText(r.Address),
		addressText(r.Token),
		addressText(p.Issuer),
		p.AuctionStart.UnixMilli(),
		numeric(p.TokenAmount),
		numeric(p.TokenIncentivesPercent),
		numeric(p.FloorPrice),
		numeric(p.MaxWithdrawPenalty),
		numeric(p.FixedWithdrawPenalty),
		numeric(p.MaxAllocation),
		p.UserTimelock.Milliseconds(),
		p.IssuerTimelock.Milliseconds(),
		r.Schedule.NoFeeDuration.Milliseconds(),
		r.Schedule.PhaseOneDuration.Milliseconds(),
		r.Schedule.PhaseTwoDuration.Milliseconds(),
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert launch event: %w", err)
	}
	return nil
}

// GetByToken retrieves the launch event of a token. Returns ErrNotFound if not exists.
func (s *LaunchEventStore) GetByToken(ctx context.Context, token common.Address) (*domain.LaunchEventRecord, error) {
	return s.getOne(ctx, "get_launch_event_by_token", selectLaunchEventSQL+` WHERE token = $1`, token)
}

// GetByAddress retrieves a launch event by its address. Returns ErrNotFound if not exists.
func (s *LaunchEventStore) GetByAddress(ctx context.Context, address common.Address) (*domain.LaunchEventRecord, error) {
	return s.getOne(ctx, "get_launch_event_by_address", selectLaunchEventSQL+` WHERE address = $1`, address)
}

func (s *LaunchEventStore) getOne(ctx context.Context, op, query string, key common.Address) (r *domain.LaunchEventRecord, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	r, err = scanLaunchEvent(s.pool.QueryRow(ctx, query, addressText(key)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// List retrieves launch events ordered by created_at ASC, then address.
// A zero limit returns every row after offset.
func (s *LaunchEventStore) List(ctx context.Context, offset, limit int) (records []*domain.LaunchEventRecord, err error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("list_launch_events", start, err) }(time.Now())

	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, selectLaunchEventSQL+`
		ORDER BY created_at ASC, address ASC
		OFFSET $1 LIMIT $2
	`, offset, lim)
	if err != nil {
		return nil, fmt.Errorf("list launch events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanLaunchEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch event: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// scanLaunchEvent scans a single row into a LaunchEventRecord.
func scanLaunchEvent(row pgx.Row) (*domain.LaunchEventRecord, error) {
	var (
		address, token, issuer                             string
		startMs, userLockMs, issuerLockMs                  int64
		noFeeMs, phaseOneMs, phaseTwoMs, createdAt         int64
		amount, incentives, floor, maxPen, fixedPen, alloc pgtype.Numeric
	)
	err := row.Scan(
		&address, &token, &issuer, &startMs, &amount, &incentives,
		&floor, &maxPen, &fixedPen, &alloc,
		&userLockMs, &issuerLockMs, &noFeeMs, &phaseOneMs, &phaseTwoMs, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r := &domain.LaunchEventRecord{
		Address: common.HexToAddress(address),
		Token:   common.HexToAddress(token),
		Params: domain.LaunchParams{
			Issuer:         common.HexToAddress(issuer),
			AuctionStart:   time.UnixMilli(startMs).UTC(),
			UserTimelock:   time.Duration(userLockMs) * time.Millisecond,
			IssuerTimelock: time.Duration(issuerLockMs) * time.Millisecond,
		},
		Schedule: domain.Schedule{
			NoFeeDuration:    time.Duration(noFeeMs) * time.Millisecond,
			PhaseOneDuration: time.Duration(phaseOneMs) * time.Millisecond,
			PhaseTwoDuration: time.Duration(phaseTwoMs) * time.Millisecond,
		},
		CreatedAt: createdAt,
	}

	targets := []struct {
		dst **big.Int
		src pgtype.Numeric
	}{
		{&r.Params.TokenAmount, amount},
		{&r.Params.TokenIncentivesPercent, incentives},
		{&r.Params.FloorPrice, floor},
		{&r.Params.MaxWithdrawPenalty, maxPen},
		{&r.Params.FixedWithdrawPenalty, fixedPen},
		{&r.Params.MaxAllocation, alloc},
	}
	for _, t := range targets {
		v, err := bigFromNumeric(t.src)
		if err != nil {
			return nil, err
		}
		*t.dst = v
	}
	return r, nil
}
