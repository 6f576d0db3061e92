package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/observability"
	"rocket-mimo/internal/storage"
)

// EventLogStore implements storage.EventLogStore using ClickHouse.
type EventLogStore struct {
	conn *Conn
}

// NewEventLogStore creates a new EventLogStore.
func NewEventLogStore(conn *Conn) *EventLogStore {
	return &EventLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventLogStore = (*EventLogStore)(nil)

const insertEventSQL = `
	INSERT INTO launch_event_log (
		event_id, event_type, launch_event, token, sequence,
		user_address, amount, penalty, phase, timestamp_ms
	)
`

const selectEventSQL = `
	SELECT event_id, event_type, launch_event, token, sequence,
		user_address, amount, penalty, phase, timestamp_ms
	FROM launch_event_log
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
// MergeTree does not enforce keys, so the check is an explicit lookup.
func (s *EventLogStore) Insert(ctx context.Context, e *domain.LedgerEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.LedgerEvent{e})
}

// InsertBulk adds multiple events. Fails entire batch on any duplicate.
func (s *EventLogStore) InsertBulk(ctx context.Context, events []*domain.LedgerEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_event", time.Since(start).Seconds(), err) }()

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[e.EventID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, e.Type.String(), e.LaunchEvent.Hex(), e.Token.Hex(), e.Sequence,
			userColumn(e.User), amountColumn(e.Amount), amountColumn(e.Penalty),
			e.Phase.String(), e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByLaunchEvent retrieves all events of a launch event, ordered by sequence ASC.
func (s *EventLogStore) GetByLaunchEvent(ctx context.Context, launchEvent common.Address) ([]*domain.LedgerEvent, error) {
	rows, err := s.conn.Query(ctx, selectEventSQL+`
		WHERE launch_event = ?
		ORDER BY sequence ASC
	`, launchEvent.Hex())
	if err != nil {
		return nil, fmt.Errorf("query by launch event: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByUser retrieves all events of a user in a launch event, ordered by sequence ASC.
func (s *EventLogStore) GetByUser(ctx context.Context, launchEvent, user common.Address) ([]*domain.LedgerEvent, error) {
	rows, err := s.conn.Query(ctx, selectEventSQL+`
		WHERE launch_event = ? AND user_address = ?
		ORDER BY sequence ASC
	`, launchEvent.Hex(), user.Hex())
	if err != nil {
		return nil, fmt.Errorf("query by user: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *EventLogStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM launch_event_log WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvents(rows chRows) ([]*domain.LedgerEvent, error) {
	var events []*domain.LedgerEvent

	for rows.Next() {
		var (
			e                             domain.LedgerEvent
			typ, launchEvent, token, user string
			amount, penalty, phase        string
		)
		err := rows.Scan(
			&e.EventID, &typ, &launchEvent, &token, &e.Sequence,
			&user, &amount, &penalty, &phase, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.Type = domain.EventType(typ)
		e.LaunchEvent = common.HexToAddress(launchEvent)
		e.Token = common.HexToAddress(token)
		if user != "" {
			e.User = common.HexToAddress(user)
		}
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if e.Penalty, err = parseAmount(penalty); err != nil {
			return nil, err
		}
		e.Phase = domain.Phase(phase)

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

func userColumn(user common.Address) string {
	if user == (common.Address{}) {
		return ""
	}
	return user.Hex()
}

func amountColumn(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount %q", storage.ErrInvalidInput, s)
	}
	return v, nil
}
