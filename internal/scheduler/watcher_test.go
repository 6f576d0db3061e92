package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/factory"
	"rocket-mimo/internal/token"
)

var (
	dev       = common.HexToAddress("0xde00000000000000000000000000000000000001")
	collector = common.HexToAddress("0xc011ec7000000000000000000000000000000002")
	issuer    = common.HexToAddress("0x1550e40000000000000000000000000000000003")

	factoryAddr = common.HexToAddress("0xfac7000000000000000000000000000000000010")
	wethAddr    = common.HexToAddress("0x7e70000000000000000000000000000000000012")
	aucAddr     = common.HexToAddress("0xa0c0000000000000000000000000000000000015")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sink struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (s *sink) Emit(ev domain.LedgerEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sink) types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func newFactory(t *testing.T, clk *clock, out *sink) *factory.Factory {
	t.Helper()
	ctx := context.Background()

	tokens := token.NewMemoryRegistry()
	tokens.GetOrCreate(wethAddr, "WETH")
	auc := tokens.GetOrCreate(aucAddr, "AUC")

	f := factory.New(factory.Options{
		Address: factoryAddr,
		Owner:   dev,
		Tokens:  tokens,
		Clock:   clk.Now,
		Sink:    out,
	})
	require.NoError(t, f.Initialize(ctx, dev, factory.Infrastructure{
		Schedule:         domain.DefaultSchedule(),
		WETH:             wethAddr,
		PenaltyCollector: collector,
	}))

	amount := domain.MustParseEther("105")
	require.NoError(t, auc.Mint(ctx, dev, amount))
	require.NoError(t, auc.Approve(ctx, dev, factoryAddr, amount))
	_, err := f.CreateRMLaunchEvent(ctx, dev, domain.LaunchParams{
		Issuer:                 issuer,
		AuctionStart:           clk.Now().Add(time.Minute),
		Token:                  aucAddr,
		TokenAmount:            amount,
		TokenIncentivesPercent: domain.MustParseEther("0.05"),
		FloorPrice:             domain.MustParseEther("1"),
		MaxWithdrawPenalty:     domain.MustParseEther("0.5"),
		FixedWithdrawPenalty:   domain.MustParseEther("0.4"),
		MaxAllocation:          domain.MustParseEther("5"),
		UserTimelock:           7 * 24 * time.Hour,
		IssuerTimelock:         8 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return f
}

func TestPhaseWatcher_Check(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)}
	out := &sink{}
	f := newFactory(t, clk, out)

	w, err := NewPhaseWatcher(f, WatcherConfig{AutoFinalize: true, Clock: clk.Now})
	require.NoError(t, err)

	res := w.Check(ctx)
	assert.Equal(t, CheckResult{Checked: 1}, res)

	clk.Advance(2 * time.Minute)
	res = w.Check(ctx)
	assert.Equal(t, CheckResult{Checked: 1, Changed: 1}, res)

	// a second pass in the same phase is quiet
	assert.Equal(t, CheckResult{Checked: 1}, w.Check(ctx))

	clk.Advance(4 * time.Hour)
	res = w.Check(ctx)
	assert.Equal(t, CheckResult{Checked: 1, Changed: 1, Finalized: 1}, res)

	// already finalized
	assert.Equal(t, CheckResult{Checked: 1}, w.Check(ctx))

	assert.Equal(t, []domain.EventType{
		domain.EventLaunchEventCreated,
		domain.EventPhaseChanged,
		domain.EventPhaseChanged,
		domain.EventAuctionFinalized,
	}, out.types())

	ev, err := f.LaunchEvent(aucAddr)
	require.NoError(t, err)
	assert.NotNil(t, ev.Info().Settlement)
}

func TestPhaseWatcher_NoAutoFinalize(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := newFactory(t, clk, &sink{})

	w, err := NewPhaseWatcher(f, WatcherConfig{Clock: clk.Now})
	require.NoError(t, err)

	clk.Advance(5 * time.Hour)
	assert.Equal(t, CheckResult{Checked: 1, Changed: 1}, w.Check(ctx))

	ev, err := f.LaunchEvent(aucAddr)
	require.NoError(t, err)
	assert.Nil(t, ev.Info().Settlement)
}

func TestNewPhaseWatcher_InvalidSpec(t *testing.T) {
	_, err := NewPhaseWatcher(nil, WatcherConfig{Spec: "every now and then"})
	assert.Error(t, err)
}

func TestPhaseWatcher_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clk := &clock{now: time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := newFactory(t, clk, &sink{})
	clk.Advance(2 * time.Minute)

	w, err := NewPhaseWatcher(f, WatcherConfig{Spec: "@every 1s", Clock: clk.Now})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	ev, err := f.LaunchEvent(aucAddr)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return ev.Info().LastSequence == 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
