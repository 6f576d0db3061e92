package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a ledger event emitted by the factory or a launch event.
type EventType string

const (
	EventLaunchEventCreated EventType = "LAUNCH_EVENT_CREATED"
	EventUserDeposited      EventType = "USER_DEPOSITED"
	EventUserWithdrawn      EventType = "USER_WITHDRAWN"
	EventPointsConfigured   EventType = "POINTS_CONFIGURED"
	EventPhaseChanged       EventType = "PHASE_CHANGED"
	EventAuctionFinalized   EventType = "AUCTION_FINALIZED"
	EventUserClaimed        EventType = "USER_CLAIMED"
	EventIssuerClaimed      EventType = "ISSUER_CLAIMED"
)

// String returns the string representation of EventType.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks if the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventLaunchEventCreated, EventUserDeposited, EventUserWithdrawn, EventPointsConfigured,
		EventPhaseChanged, EventAuctionFinalized, EventUserClaimed, EventIssuerClaimed:
		return true
	}
	return false
}

// LedgerEvent is an append-only record of a state change.
// Corresponds to launch_event_log table in ClickHouse.
type LedgerEvent struct {
	EventID     string         // PRIMARY KEY, deterministic hash of (launch_event, sequence)
	Type        EventType      // event kind
	LaunchEvent common.Address // emitting launch event
	Token       common.Address // auctioned token
	Sequence    uint64         // per launch event, starts at 1
	User        common.Address // zero for events without a user
	Amount      *big.Int       // deposited/withdrawn/claimed amount (nil if n/a)
	Penalty     *big.Int       // withdrawal penalty (nil if n/a)
	Phase       Phase          // phase at emission
	Timestamp   int64          // Unix timestamp in milliseconds
}
