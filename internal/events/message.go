// Package events carries ledger events from launch events to their
// consumers: storage, RabbitMQ, websocket clients and metrics.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

// Message is the JSON form of a ledger event. Amounts are decimal wei
// strings; addresses are checksummed hex.
type Message struct {
	EventID     string `json:"event_id"`
	Type        string `json:"type"`
	LaunchEvent string `json:"launch_event"`
	Token       string `json:"token"`
	Sequence    uint64 `json:"sequence"`
	User        string `json:"user,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Penalty     string `json:"penalty,omitempty"`
	Phase       string `json:"phase"`
	Timestamp   int64  `json:"timestamp"`
}

// NewMessage converts ev into its wire form.
func NewMessage(ev domain.LedgerEvent) Message {
	m := Message{
		EventID:     ev.EventID,
		Type:        ev.Type.String(),
		LaunchEvent: ev.LaunchEvent.Hex(),
		Token:       ev.Token.Hex(),
		Sequence:    ev.Sequence,
		Amount:      decimalString(ev.Amount),
		Penalty:     decimalString(ev.Penalty),
		Phase:       ev.Phase.String(),
		Timestamp:   ev.Timestamp,
	}
	if ev.User != (common.Address{}) {
		m.User = ev.User.Hex()
	}
	return m
}

func decimalString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
