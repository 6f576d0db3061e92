package events

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/storage"
)

// Recorder persists ledger events and keeps user_balances in step with them.
// It relies on in-order delivery: balances are derived from the previous
// stored balance plus the event delta.
type Recorder struct {
	log      storage.EventLogStore
	balances storage.BalanceStore
}

// NewRecorder creates a storage sink.
func NewRecorder(log storage.EventLogStore, balances storage.BalanceStore) *Recorder {
	return &Recorder{log: log, balances: balances}
}

// Name implements Sink.
func (r *Recorder) Name() string { return "storage" }

// Handle implements Sink. Already recorded events are skipped, so replays
// do not double-apply balance deltas.
func (r *Recorder) Handle(ctx context.Context, ev domain.LedgerEvent) error {
	if err := r.log.Insert(ctx, &ev); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}

	switch ev.Type {
	case domain.EventUserDeposited:
		return r.applyDelta(ctx, ev, ev.Amount, false)
	case domain.EventUserWithdrawn:
		return r.applyDelta(ctx, ev, new(big.Int).Neg(domain.Copy(ev.Amount)), false)
	case domain.EventUserClaimed:
		return r.applyDelta(ctx, ev, new(big.Int), true)
	}
	return nil
}

func (r *Recorder) applyDelta(ctx context.Context, ev domain.LedgerEvent, delta *big.Int, claimed bool) error {
	current := &domain.UserBalance{LaunchEvent: ev.LaunchEvent, User: ev.User, Balance: new(big.Int)}
	stored, err := r.balances.Get(ctx, ev.LaunchEvent, ev.User)
	switch {
	case err == nil:
		current = stored
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("get balance: %w", err)
	}

	current.Balance = new(big.Int).Add(current.Balance, delta)
	if current.Balance.Sign() < 0 {
		return fmt.Errorf("%w: negative balance for %s", storage.ErrInvalidInput, ev.User.Hex())
	}
	current.Claimed = current.Claimed || claimed
	current.UpdatedAt = ev.Timestamp

	if err := r.balances.Upsert(ctx, current); err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}
