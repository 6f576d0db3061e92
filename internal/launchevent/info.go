package launchevent

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

// Info is a point-in-time view of a launch event.
type Info struct {
	Address       common.Address
	Initialized   bool
	Params        domain.LaunchParams
	Schedule      domain.Schedule
	Phase         domain.Phase
	PenaltyRate   *big.Int
	TotalDeposits *big.Int
	TotalPenalty  *big.Int
	Participants  int
	PointsLedger  common.Address
	PointsLimit   int64
	Settlement    *Settlement
	IssuerClaimed bool
	EndTime       time.Time
	LastSequence  uint64
}

// Info returns a snapshot of the event.
func (e *LaunchEvent) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	info := Info{
		Address:       e.address,
		Initialized:   e.initialized,
		Params:        e.params.Clone(),
		Schedule:      e.schedule,
		Phase:         e.phaseLocked(now),
		PenaltyRate:   new(big.Int),
		TotalDeposits: domain.Copy(e.totalDeposits),
		TotalPenalty:  domain.Copy(e.totalPenalty),
		Settlement:    e.settlement.clone(),
		IssuerClaimed: e.issuerClaimed,
		LastSequence:  e.seq,
	}
	if e.policy.PointsConfigured() {
		info.PointsLedger = e.pointsLedger
		info.PointsLimit = e.policy.PointsLimit()
	}
	if e.initialized {
		info.PenaltyRate = e.penaltyLocked(now)
		info.EndTime = e.endTime()
	}
	for _, b := range e.balances {
		if b.Sign() > 0 {
			info.Participants++
		}
	}
	return info
}

// UserInfo is a user's position in a launch event.
type UserInfo struct {
	User          common.Address
	Balance       *big.Int
	MaxAllocation *big.Int
	Claimed       bool
}

// UserInfo returns user's balance, allocation and claim status.
func (e *LaunchEvent) UserInfo(ctx context.Context, user common.Address) (UserInfo, error) {
	e.mu.Lock()
	bal := e.balanceLocked(user)
	claimed := e.claimed[user]
	policy := e.policy
	e.mu.Unlock()

	limit, err := policy.UserMaxAllocation(ctx, user)
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{User: user, Balance: bal, MaxAllocation: limit, Claimed: claimed}, nil
}

// Balances returns a copy of every non-zero user balance.
func (e *LaunchEvent) Balances() map[common.Address]*big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[common.Address]*big.Int, len(e.balances))
	for u, b := range e.balances {
		if b.Sign() > 0 {
			out[u] = new(big.Int).Set(b)
		}
	}
	return out
}
