// Package lens provides read-only views over the factory and its launch
// events, and renders them as CSV or markdown.
package lens

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/factory"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/storage"
)

// ErrNoHistory is returned by UserHistory when no event log is attached.
var ErrNoHistory = errors.New("lens: no event log attached")

// LaunchEventData is the lens view of one launch event.
type LaunchEventData struct {
	Address           common.Address
	Token             common.Address
	Issuer            common.Address
	Phase             domain.Phase
	AuctionStart      time.Time
	EndTime           time.Time
	TokenAmount       *big.Int
	IncentivesPercent *big.Int
	FloorPrice        *big.Int
	MaxAllocation     *big.Int
	MaxPenalty        *big.Int
	FixedPenalty      *big.Int
	PenaltyRate       *big.Int
	TotalDeposits     *big.Int
	TotalPenalty      *big.Int
	Participants      int
	PointsLedger      common.Address
	PointsLimit       int64
	Finalized         bool
	AllocatedTokens   *big.Int // nil until finalized
}

// UserData is the lens view of a user in a launch event.
type UserData struct {
	LaunchEvent   common.Address
	User          common.Address
	Balance       *big.Int
	MaxAllocation *big.Int
	Claimed       bool
}

// UserEvent is one recorded ledger entry of a user.
type UserEvent struct {
	Sequence  uint64
	Type      domain.EventType
	Phase     domain.Phase
	Amount    *big.Int
	Penalty   *big.Int // withdrawals only
	Timestamp time.Time
}

// Lens reads launch events through a factory.
type Lens struct {
	factory *factory.Factory
	history storage.EventLogStore
}

// New creates a lens over f.
func New(f *factory.Factory) *Lens {
	return &Lens{factory: f}
}

// WithHistory returns a lens that also serves user histories from log.
func (l *Lens) WithHistory(log storage.EventLogStore) *Lens {
	cp := *l
	cp.history = log
	return &cp
}

// Count returns the number of launch events.
func (l *Lens) Count() int {
	return l.factory.NumLaunchEvents()
}

// LaunchEvents returns launch events in creation order. A zero limit
// returns everything after offset.
func (l *Lens) LaunchEvents(offset, limit int) []LaunchEventData {
	events := l.factory.LaunchEvents(offset, limit)
	out := make([]LaunchEventData, 0, len(events))
	for _, ev := range events {
		out = append(out, Describe(ev.Info()))
	}
	return out
}

// LaunchEvent returns the view of the launch event of token.
func (l *Lens) LaunchEvent(token common.Address) (LaunchEventData, error) {
	ev, err := l.factory.LaunchEvent(token)
	if err != nil {
		return LaunchEventData{}, err
	}
	return Describe(ev.Info()), nil
}

// User returns user's view in the launch event of token.
func (l *Lens) User(ctx context.Context, token, user common.Address) (UserData, error) {
	ev, err := l.factory.LaunchEvent(token)
	if err != nil {
		return UserData{}, err
	}
	info, err := ev.UserInfo(ctx, user)
	if err != nil {
		return UserData{}, fmt.Errorf("user info: %w", err)
	}
	return UserData{
		LaunchEvent:   ev.Address(),
		User:          user,
		Balance:       info.Balance,
		MaxAllocation: info.MaxAllocation,
		Claimed:       info.Claimed,
	}, nil
}

// UserHistory returns the recorded events of user in the launch event of
// token, oldest first. Events still queued for recording are not included.
func (l *Lens) UserHistory(ctx context.Context, token, user common.Address) ([]UserEvent, error) {
	if l.history == nil {
		return nil, ErrNoHistory
	}
	ev, err := l.factory.LaunchEvent(token)
	if err != nil {
		return nil, err
	}
	logged, err := l.history.GetByUser(ctx, ev.Address(), user)
	if err != nil {
		return nil, fmt.Errorf("user history: %w", err)
	}

	out := make([]UserEvent, 0, len(logged))
	for _, le := range logged {
		ue := UserEvent{
			Sequence:  le.Sequence,
			Type:      le.Type,
			Phase:     le.Phase,
			Amount:    domain.Copy(le.Amount),
			Timestamp: time.UnixMilli(le.Timestamp).UTC(),
		}
		if le.Penalty != nil {
			ue.Penalty = domain.Copy(le.Penalty)
		}
		out = append(out, ue)
	}
	return out, nil
}

// Describe converts a launch event snapshot into its lens view.
func Describe(info launchevent.Info) LaunchEventData {
	p := info.Params
	d := LaunchEventData{
		Address:           info.Address,
		Token:             p.Token,
		Issuer:            p.Issuer,
		Phase:             info.Phase,
		AuctionStart:      p.AuctionStart,
		EndTime:           info.EndTime,
		TokenAmount:       domain.Copy(p.TokenAmount),
		IncentivesPercent: domain.Copy(p.TokenIncentivesPercent),
		FloorPrice:        domain.Copy(p.FloorPrice),
		MaxAllocation:     domain.Copy(p.MaxAllocation),
		MaxPenalty:        domain.Copy(p.MaxWithdrawPenalty),
		FixedPenalty:      domain.Copy(p.FixedWithdrawPenalty),
		PenaltyRate:       domain.Copy(info.PenaltyRate),
		TotalDeposits:     domain.Copy(info.TotalDeposits),
		TotalPenalty:      domain.Copy(info.TotalPenalty),
		Participants:      info.Participants,
		PointsLedger:      info.PointsLedger,
		PointsLimit:       info.PointsLimit,
	}
	if info.Settlement != nil {
		d.Finalized = true
		d.AllocatedTokens = domain.Copy(info.Settlement.AllocatedTokens)
	}
	return d
}
