package verification

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/events"
	"rocket-mimo/internal/idhash"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/storage/memory"
)

var (
	eventAddr = common.HexToAddress("0xe0e0000000000000000000000000000000000001")
	alice     = common.HexToAddress("0xa11ce00000000000000000000000000000000004")
	bob       = common.HexToAddress("0xb0b0000000000000000000000000000000000005")
)

func ledgerEvent(seq uint64, typ domain.EventType, user common.Address, amount, penalty string) *domain.LedgerEvent {
	ev := &domain.LedgerEvent{
		EventID:     idhash.ComputeEventID(eventAddr, seq, typ),
		Type:        typ,
		LaunchEvent: eventAddr,
		Sequence:    seq,
		User:        user,
		Timestamp:   int64(seq) * 1000,
	}
	if amount != "" {
		ev.Amount = domain.MustParseEther(amount)
	}
	if penalty != "" {
		ev.Penalty = domain.MustParseEther(penalty)
	}
	return ev
}

func history() []*domain.LedgerEvent {
	return []*domain.LedgerEvent{
		ledgerEvent(1, domain.EventLaunchEventCreated, common.Address{}, "", ""),
		ledgerEvent(2, domain.EventUserDeposited, alice, "1", ""),
		ledgerEvent(3, domain.EventUserDeposited, bob, "2", ""),
		ledgerEvent(4, domain.EventUserWithdrawn, alice, "0.1", "0.04"),
		ledgerEvent(5, domain.EventPhaseChanged, common.Address{}, "", ""),
		ledgerEvent(6, domain.EventAuctionFinalized, common.Address{}, "2.9", ""),
		ledgerEvent(7, domain.EventUserClaimed, bob, "1.8", ""),
	}
}

func TestReplay(t *testing.T) {
	r, err := Replay(history())
	require.NoError(t, err)

	assert.Equal(t, "0.9", domain.FormatEther(r.Balances[alice]))
	assert.Equal(t, "2", domain.FormatEther(r.Balances[bob]))
	assert.Equal(t, "2.9", domain.FormatEther(r.TotalDeposits))
	assert.Equal(t, "0.04", domain.FormatEther(r.TotalPenalty))
	assert.True(t, r.Claimed[bob])
	assert.False(t, r.Claimed[alice])
	assert.True(t, r.Finalized)
	assert.Equal(t, uint64(7), r.LastSequence)
}

func TestReplay_Errors(t *testing.T) {
	h := history()
	_, err := Replay(append(h[:2:2], h[3]))
	assert.ErrorIs(t, err, ErrSequenceGap)

	_, err = Replay([]*domain.LedgerEvent{
		ledgerEvent(1, domain.EventUserWithdrawn, alice, "1", "0"),
	})
	assert.ErrorIs(t, err, ErrNegativeBalance)
}

type fakeLive struct {
	info     launchevent.Info
	balances map[common.Address]*big.Int
}

func (f fakeLive) Info() launchevent.Info                { return f.info }
func (f fakeLive) Balances() map[common.Address]*big.Int { return f.balances }

func TestReplayVerifier_Match(t *testing.T) {
	ctx := context.Background()
	log := memory.NewEventLogStore()
	balances := memory.NewBalanceStore()
	rec := events.NewRecorder(log, balances)
	for _, ev := range history() {
		require.NoError(t, rec.Handle(ctx, *ev))
	}

	live := fakeLive{
		info: launchevent.Info{
			LastSequence:  7,
			TotalDeposits: domain.MustParseEther("2.9"),
			TotalPenalty:  domain.MustParseEther("0.04"),
		},
		balances: map[common.Address]*big.Int{
			alice: domain.MustParseEther("0.9"),
			bob:   domain.MustParseEther("2"),
		},
	}

	report, err := NewReplayVerifier(log, balances).Verify(ctx, eventAddr, live)
	require.NoError(t, err)
	assert.True(t, report.Match, "%+v", report.Divergences)
	assert.Equal(t, 7, report.Events)
	assert.Equal(t, 2, report.Users)
}

func TestReplayVerifier_Divergences(t *testing.T) {
	ctx := context.Background()
	log := memory.NewEventLogStore()
	balances := memory.NewBalanceStore()
	rec := events.NewRecorder(log, balances)
	for _, ev := range history() {
		require.NoError(t, rec.Handle(ctx, *ev))
	}

	// tamper with the projection
	require.NoError(t, balances.Upsert(ctx, &domain.UserBalance{
		LaunchEvent: eventAddr, User: alice, Balance: domain.MustParseEther("5"),
	}))

	live := fakeLive{
		info: launchevent.Info{
			LastSequence:  8,
			TotalDeposits: domain.MustParseEther("2.9"),
			TotalPenalty:  domain.MustParseEther("0.04"),
		},
		balances: map[common.Address]*big.Int{
			alice: domain.MustParseEther("0.9"),
			bob:   domain.MustParseEther("2"),
		},
	}

	report, err := NewReplayVerifier(log, balances).Verify(ctx, eventAddr, live)
	require.NoError(t, err)
	assert.False(t, report.Match)

	fields := make(map[string]FieldDivergence)
	for _, d := range report.Divergences {
		fields[d.Field] = d
	}
	require.Contains(t, fields, "balance")
	assert.Equal(t, "0.9", fields["balance"].Expected)
	assert.Equal(t, "5", fields["balance"].Actual)
	require.Contains(t, fields, "last_sequence")
	assert.Equal(t, "8", fields["last_sequence"].Actual)
}

func TestReplayVerifier_Registry(t *testing.T) {
	ctx := context.Background()
	log := memory.NewEventLogStore()
	balances := memory.NewBalanceStore()
	rec := events.NewRecorder(log, balances)
	for _, ev := range history() {
		require.NoError(t, rec.Handle(ctx, *ev))
	}
	registry := memory.NewLaunchEventStore()
	token := common.HexToAddress("0xa0c0000000000000000000000000000000000015")
	verifier := NewReplayVerifier(log, balances).WithRegistry(registry)

	report, err := verifier.Verify(ctx, eventAddr, nil)
	require.NoError(t, err)
	assert.False(t, report.Match)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, "registry", report.Divergences[0].Field)
	assert.Equal(t, "missing", report.Divergences[0].Actual)

	require.NoError(t, registry.Insert(ctx, &domain.LaunchEventRecord{Address: eventAddr, Token: token}))

	report, err = verifier.Verify(ctx, eventAddr, nil)
	require.NoError(t, err)
	assert.True(t, report.Match, "%+v", report.Divergences)

	live := fakeLive{
		info: launchevent.Info{
			Params:        domain.LaunchParams{Token: bob},
			LastSequence:  7,
			TotalDeposits: domain.MustParseEther("2.9"),
			TotalPenalty:  domain.MustParseEther("0.04"),
		},
		balances: map[common.Address]*big.Int{
			alice: domain.MustParseEther("0.9"),
			bob:   domain.MustParseEther("2"),
		},
	}
	report, err = verifier.Verify(ctx, eventAddr, live)
	require.NoError(t, err)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, "registry_token", report.Divergences[0].Field)
	assert.Equal(t, token.Hex(), report.Divergences[0].Expected)

	live.info.Params.Token = token
	report, err = verifier.Verify(ctx, eventAddr, live)
	require.NoError(t, err)
	assert.True(t, report.Match, "%+v", report.Divergences)
}

func TestCompareBalances_MissingRows(t *testing.T) {
	r, err := Replay(history())
	require.NoError(t, err)

	divs := CompareBalances(r, []*domain.UserBalance{
		{LaunchEvent: eventAddr, User: alice, Balance: domain.MustParseEther("0.9")},
		{LaunchEvent: eventAddr, User: common.HexToAddress("0xcc"), Balance: big.NewInt(1)},
	})
	require.Len(t, divs, 2)
	assert.Equal(t, "missing", divs[0].Expected)
	assert.Equal(t, bob, divs[1].User)
	assert.Equal(t, "missing", divs[1].Actual)
}
