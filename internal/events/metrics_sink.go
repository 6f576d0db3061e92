package events

import (
	"context"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/observability"
)

// MetricsSink feeds ledger events into the Prometheus metrics.
type MetricsSink struct{}

// Name implements Sink.
func (MetricsSink) Name() string { return "metrics" }

// Handle implements Sink.
func (MetricsSink) Handle(_ context.Context, ev domain.LedgerEvent) error {
	switch ev.Type {
	case domain.EventLaunchEventCreated:
		observability.RecordLaunchEventCreated()
	case domain.EventUserDeposited:
		observability.RecordDeposit(domain.EtherFloat(ev.Amount))
	case domain.EventUserWithdrawn:
		observability.RecordWithdrawal(ev.Phase.String(), domain.EtherFloat(ev.Penalty))
	case domain.EventPhaseChanged:
		observability.SetPhase(ev.LaunchEvent.Hex(), ev.Phase.Ordinal())
	case domain.EventAuctionFinalized:
		observability.RecordFinalized()
	case domain.EventUserClaimed:
		observability.RecordClaim("user")
	case domain.EventIssuerClaimed:
		observability.RecordClaim("issuer")
	}
	return nil
}
