package domain

// Phase is the auction phase of a launch event. It is always derived from
// the clock and the schedule, never stored.
type Phase string

const (
	PhaseNotStarted     Phase = "NOT_STARTED"
	PhaseActive         Phase = "ACTIVE"
	PhaseWithdrawPhase1 Phase = "WITHDRAW_PHASE_1"
	PhaseWithdrawPhase2 Phase = "WITHDRAW_PHASE_2"
	PhaseEnded          Phase = "ENDED"
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid checks if the phase is a known value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseNotStarted, PhaseActive, PhaseWithdrawPhase1, PhaseWithdrawPhase2, PhaseEnded:
		return true
	}
	return false
}

// Ordinal returns the position of the phase in the lifecycle (0..4), or -1.
// Used for the phase gauge.
func (p Phase) Ordinal() int {
	switch p {
	case PhaseNotStarted:
		return 0
	case PhaseActive:
		return 1
	case PhaseWithdrawPhase1:
		return 2
	case PhaseWithdrawPhase2:
		return 3
	case PhaseEnded:
		return 4
	}
	return -1
}

// AllowsDeposit reports whether deposits are accepted in the phase.
func (p Phase) AllowsDeposit() bool {
	return p == PhaseActive
}

// AllowsWithdraw reports whether user withdrawals are accepted in the phase.
func (p Phase) AllowsWithdraw() bool {
	return p == PhaseActive || p == PhaseWithdrawPhase1 || p == PhaseWithdrawPhase2
}
