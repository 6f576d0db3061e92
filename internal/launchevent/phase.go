package launchevent

import (
	"math/big"
	"time"

	"rocket-mimo/internal/domain"
)

// MaxPenalty is the upper bound accepted for withdrawal penalties (50%).
var MaxPenalty = new(big.Int).Quo(domain.WeiPerEther, big.NewInt(2))

// PhaseAt returns the phase of an auction starting at start, at time now.
// The phase is derived, never stored.
func PhaseAt(now, start time.Time, s domain.Schedule) domain.Phase {
	switch {
	case now.Before(start):
		return domain.PhaseNotStarted
	case now.Before(start.Add(s.NoFeeDuration)):
		return domain.PhaseActive
	case now.Before(start.Add(s.PhaseOneDuration)):
		return domain.PhaseWithdrawPhase1
	case now.Before(start.Add(s.Total())):
		return domain.PhaseWithdrawPhase2
	default:
		return domain.PhaseEnded
	}
}

// PenaltyRate returns the withdrawal penalty rate (1e18 = 100%) at now.
//
//	Active          0
//	WithdrawPhase1  max - (max-fixed) * elapsed/window, elapsed from start+NoFee
//	WithdrawPhase2  fixed
//
// Outside the withdrawal phases the rate is zero.
func PenaltyRate(now, start time.Time, s domain.Schedule, maxRate, fixedRate *big.Int) *big.Int {
	switch PhaseAt(now, start, s) {
	case domain.PhaseWithdrawPhase1:
		window := s.PhaseOneDuration - s.NoFeeDuration
		elapsed := now.Sub(start.Add(s.NoFeeDuration))

		decay := new(big.Int).Sub(maxRate, fixedRate)
		decay.Mul(decay, big.NewInt(int64(elapsed)))
		decay.Quo(decay, big.NewInt(int64(window)))
		return decay.Sub(maxRate, decay)
	case domain.PhaseWithdrawPhase2:
		return domain.Copy(fixedRate)
	default:
		return new(big.Int)
	}
}
