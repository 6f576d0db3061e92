package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/storage"
)

// Report is the outcome of verifying one launch event.
type Report struct {
	LaunchEvent   common.Address
	Events        int
	Users         int
	LastSequence  uint64
	TotalDeposits *big.Int
	TotalPenalty  *big.Int
	Match         bool
	Divergences   []FieldDivergence
}

// Live is the in-memory auction a report can also be checked against.
type Live interface {
	Info() launchevent.Info
	Balances() map[common.Address]*big.Int
}

// ReplayVerifier checks the balance projection against the event log.
type ReplayVerifier struct {
	log      storage.EventLogStore
	balances storage.BalanceStore
	registry storage.LaunchEventStore // optional
}

// NewReplayVerifier creates a verifier over the given stores.
func NewReplayVerifier(log storage.EventLogStore, balances storage.BalanceStore) *ReplayVerifier {
	return &ReplayVerifier{log: log, balances: balances}
}

// WithRegistry returns a verifier that also checks the launch event is
// registered, and registered for the live auction's token.
func (v *ReplayVerifier) WithRegistry(registry storage.LaunchEventStore) *ReplayVerifier {
	out := *v
	out.registry = registry
	return &out
}

// Verify replays launchEvent's log and compares it with user_balances and,
// when live is non-nil, with the running auction. Events still queued in the
// dispatcher show up as live divergences until they are recorded.
func (v *ReplayVerifier) Verify(ctx context.Context, launchEvent common.Address, live Live) (*Report, error) {
	events, err := v.log.GetByLaunchEvent(ctx, launchEvent)
	if err != nil {
		return nil, fmt.Errorf("load event log: %w", err)
	}
	replayed, err := Replay(events)
	if err != nil {
		return nil, err
	}
	stored, err := v.balances.ListByLaunchEvent(ctx, launchEvent)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}

	report := &Report{
		LaunchEvent:   launchEvent,
		Events:        len(events),
		Users:         len(replayed.Balances),
		LastSequence:  replayed.LastSequence,
		TotalDeposits: replayed.TotalDeposits,
		TotalPenalty:  replayed.TotalPenalty,
	}
	report.Divergences = CompareBalances(replayed, stored)
	if v.registry != nil {
		regDivergences, err := v.checkRegistry(ctx, launchEvent, live)
		if err != nil {
			return nil, err
		}
		report.Divergences = append(report.Divergences, regDivergences...)
	}
	if live != nil {
		report.Divergences = append(report.Divergences, CompareLive(replayed, live)...)
	}
	report.Match = len(report.Divergences) == 0
	return report, nil
}

func (v *ReplayVerifier) checkRegistry(ctx context.Context, launchEvent common.Address, live Live) ([]FieldDivergence, error) {
	rec, err := v.registry.GetByAddress(ctx, launchEvent)
	if errors.Is(err, storage.ErrNotFound) {
		return []FieldDivergence{{Field: "registry", Expected: "registered", Actual: "missing"}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load launch event record: %w", err)
	}
	if live == nil {
		return nil, nil
	}
	if token := live.Info().Params.Token; token != rec.Token {
		return []FieldDivergence{{Field: "registry_token", Expected: rec.Token.Hex(), Actual: token.Hex()}}, nil
	}
	return nil, nil
}

// CompareBalances compares replayed balances with stored rows.
func CompareBalances(replayed *Replayed, stored []*domain.UserBalance) []FieldDivergence {
	var divergences []FieldDivergence

	seen := make(map[common.Address]bool, len(stored))
	for _, row := range stored {
		seen[row.User] = true
		want, ok := replayed.Balances[row.User]
		if !ok {
			divergences = append(divergences, FieldDivergence{
				Field: "balance", User: row.User, Expected: "missing", Actual: domain.FormatEther(row.Balance),
			})
			continue
		}
		if want.Cmp(row.Balance) != 0 {
			divergences = append(divergences, FieldDivergence{
				Field: "balance", User: row.User, Expected: domain.FormatEther(want), Actual: domain.FormatEther(row.Balance),
			})
		}
		if replayed.Claimed[row.User] != row.Claimed {
			divergences = append(divergences, FieldDivergence{
				Field: "claimed", User: row.User,
				Expected: strconv.FormatBool(replayed.Claimed[row.User]), Actual: strconv.FormatBool(row.Claimed),
			})
		}
	}

	for _, user := range sortedUsers(replayed.Balances) {
		if !seen[user] {
			divergences = append(divergences, FieldDivergence{
				Field: "balance", User: user, Expected: domain.FormatEther(replayed.Balances[user]), Actual: "missing",
			})
		}
	}
	return divergences
}

// CompareLive compares the replay with the running auction.
func CompareLive(replayed *Replayed, live Live) []FieldDivergence {
	var divergences []FieldDivergence
	info := live.Info()

	if info.LastSequence != replayed.LastSequence {
		divergences = append(divergences, FieldDivergence{
			Field:    "last_sequence",
			Expected: strconv.FormatUint(replayed.LastSequence, 10),
			Actual:   strconv.FormatUint(info.LastSequence, 10),
		})
	}
	for field, pair := range map[string][2]*big.Int{
		"total_deposits": {replayed.TotalDeposits, info.TotalDeposits},
		"total_penalty":  {replayed.TotalPenalty, info.TotalPenalty},
	} {
		if pair[0].Cmp(pair[1]) != 0 {
			divergences = append(divergences, FieldDivergence{
				Field: field, Expected: domain.FormatEther(pair[0]), Actual: domain.FormatEther(pair[1]),
			})
		}
	}

	balances := live.Balances()
	for _, user := range sortedUsers(replayed.Balances) {
		want := replayed.Balances[user]
		got, ok := balances[user]
		if !ok {
			got = new(big.Int)
		}
		if want.Cmp(got) != 0 {
			divergences = append(divergences, FieldDivergence{
				Field: "live_balance", User: user, Expected: domain.FormatEther(want), Actual: domain.FormatEther(got),
			})
		}
	}
	for user, got := range balances {
		if _, ok := replayed.Balances[user]; !ok {
			divergences = append(divergences, FieldDivergence{
				Field: "live_balance", User: user, Expected: "missing", Actual: domain.FormatEther(got),
			})
		}
	}

	sort.SliceStable(divergences, func(i, j int) bool { return divergences[i].Field < divergences[j].Field })
	return divergences
}

func sortedUsers(m map[common.Address]*big.Int) []common.Address {
	out := make([]common.Address, 0, len(m))
	for u := range m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
