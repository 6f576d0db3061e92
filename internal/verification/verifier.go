// Package verification replays a launch event's ledger events and checks
// that the stored balance projection, and optionally the live auction,
// agree with the replay.
package verification

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

var (
	// ErrSequenceGap is returned when the event log skips or repeats a sequence.
	ErrSequenceGap = errors.New("verification: event sequence gap")

	// ErrNegativeBalance is returned when a replayed withdrawal exceeds the balance.
	ErrNegativeBalance = errors.New("verification: replayed balance below zero")
)

// FieldDivergence is a mismatch between the replay and a stored or live value.
type FieldDivergence struct {
	Field    string         // "balance", "claimed", "total_deposits", ...
	User     common.Address // zero for event-level fields
	Expected string         // replayed value
	Actual   string         // stored or live value
}

// Replayed is the state rebuilt from the event log.
type Replayed struct {
	Balances      map[common.Address]*big.Int
	Claimed       map[common.Address]bool
	TotalDeposits *big.Int
	TotalPenalty  *big.Int
	LastSequence  uint64
	Finalized     bool
}

// Replay folds events (ordered by sequence) into balances and totals.
// Sequences must start at 1 and be contiguous.
func Replay(events []*domain.LedgerEvent) (*Replayed, error) {
	r := &Replayed{
		Balances:      make(map[common.Address]*big.Int),
		Claimed:       make(map[common.Address]bool),
		TotalDeposits: new(big.Int),
		TotalPenalty:  new(big.Int),
	}

	for _, ev := range events {
		if ev.Sequence != r.LastSequence+1 {
			return nil, fmt.Errorf("%w: expected %d, got %d (%s)", ErrSequenceGap, r.LastSequence+1, ev.Sequence, ev.EventID)
		}
		r.LastSequence = ev.Sequence

		switch ev.Type {
		case domain.EventUserDeposited:
			r.balance(ev.User).Add(r.balance(ev.User), amountOf(ev.Amount))
			r.TotalDeposits.Add(r.TotalDeposits, amountOf(ev.Amount))
		case domain.EventUserWithdrawn:
			bal := r.balance(ev.User)
			bal.Sub(bal, amountOf(ev.Amount))
			if bal.Sign() < 0 {
				return nil, fmt.Errorf("%w: %s at sequence %d", ErrNegativeBalance, ev.User.Hex(), ev.Sequence)
			}
			r.TotalDeposits.Sub(r.TotalDeposits, amountOf(ev.Amount))
			r.TotalPenalty.Add(r.TotalPenalty, amountOf(ev.Penalty))
		case domain.EventUserClaimed:
			r.balance(ev.User)
			r.Claimed[ev.User] = true
		case domain.EventAuctionFinalized:
			r.Finalized = true
		}
	}
	return r, nil
}

func (r *Replayed) balance(user common.Address) *big.Int {
	b, ok := r.Balances[user]
	if !ok {
		b = new(big.Int)
		r.Balances[user] = b
	}
	return b
}

func amountOf(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
