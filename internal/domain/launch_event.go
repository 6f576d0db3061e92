package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Schedule holds the phase durations shared by every launch event created
// from the same prototype.
type Schedule struct {
	NoFeeDuration    time.Duration // Active: deposits and free withdrawals
	PhaseOneDuration time.Duration // NoFee + decaying penalty window
	PhaseTwoDuration time.Duration // flat penalty window
}

// DefaultSchedule mirrors the prototype deployed by the launch scripts.
func DefaultSchedule() Schedule {
	return Schedule{
		NoFeeDuration:    1 * time.Hour,
		PhaseOneDuration: 2 * time.Hour,
		PhaseTwoDuration: 1 * time.Hour,
	}
}

// Total returns the duration from auction start to Ended.
func (s Schedule) Total() time.Duration {
	return s.PhaseOneDuration + s.PhaseTwoDuration
}

// IsValid checks the ordering of the durations.
func (s Schedule) IsValid() bool {
	return s.NoFeeDuration >= 0 &&
		s.PhaseOneDuration > s.NoFeeDuration &&
		s.PhaseTwoDuration > 0
}

// LaunchParams are the fixed economic and timing parameters of a launch
// event, set once at initialization.
type LaunchParams struct {
	Issuer                 common.Address
	AuctionStart           time.Time
	Token                  common.Address
	TokenAmount            *big.Int // tokens for sale plus incentives
	TokenIncentivesPercent *big.Int // 1e18 = 100%
	FloorPrice             *big.Int // wrapped asset per token, 1e18-scaled
	MaxWithdrawPenalty     *big.Int // 1e18 = 100%
	FixedWithdrawPenalty   *big.Int // 1e18 = 100%
	MaxAllocation          *big.Int // base cap per user, wei
	UserTimelock           time.Duration
	IssuerTimelock         time.Duration
}

// Clone returns a deep copy of the params.
func (p LaunchParams) Clone() LaunchParams {
	out := p
	out.TokenAmount = Copy(p.TokenAmount)
	out.TokenIncentivesPercent = Copy(p.TokenIncentivesPercent)
	out.FloorPrice = Copy(p.FloorPrice)
	out.MaxWithdrawPenalty = Copy(p.MaxWithdrawPenalty)
	out.FixedWithdrawPenalty = Copy(p.FixedWithdrawPenalty)
	out.MaxAllocation = Copy(p.MaxAllocation)
	return out
}

// LaunchEventRecord is the registry row for a launch event.
// Corresponds to launch_events table in PostgreSQL.
type LaunchEventRecord struct {
	Address   common.Address // PRIMARY KEY, derived from factory and token
	Token     common.Address // UNIQUE, one launch event per asset
	Params    LaunchParams
	Schedule  Schedule
	CreatedAt int64 // Unix timestamp in milliseconds
}
