package factory

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/events"
	"rocket-mimo/internal/points"
	"rocket-mimo/internal/storage/memory"
	"rocket-mimo/internal/token"
)

// recorderSink applies every event to the stores as it is emitted.
type recorderSink struct {
	t   *testing.T
	rec *events.Recorder
}

func (s recorderSink) Emit(ev domain.LedgerEvent) {
	if err := s.rec.Handle(context.Background(), ev); err != nil {
		s.t.Errorf("record %s #%d: %v", ev.Type, ev.Sequence, err)
	}
}

// sharedStores outlive a single factory, like the databases behind rocketd.
type sharedStores struct {
	launchEvents *memory.LaunchEventStore
	balances     *memory.BalanceStore
	log          *memory.EventLogStore
}

func newSharedStores() *sharedStores {
	return &sharedStores{
		launchEvents: memory.NewLaunchEventStore(),
		balances:     memory.NewBalanceStore(),
		log:          memory.NewEventLogStore(),
	}
}

// startFactory is one process lifetime: fresh token ledgers, shared stores.
func startFactory(t *testing.T, s *sharedStores, now *time.Time, withLog bool) (*Factory, *token.MemoryRegistry) {
	t.Helper()

	tokens := token.NewMemoryRegistry()
	tokens.GetOrCreate(wethAddr, "WETH")
	chefs := points.NewRegistry()

	opts := Options{
		Address: factoryAddr,
		Owner:   dev,
		Tokens:  tokens,
		Points: func(_ context.Context, addr common.Address) (allocation.PointsSource, error) {
			return chefs.Get(addr)
		},
		Store:  s.launchEvents,
		Sink:   recorderSink{t: t, rec: events.NewRecorder(s.log, s.balances)},
		Clock:  func() time.Time { return *now },
		Logger: zap.NewNop(),
	}
	if withLog {
		opts.Log = s.log
	}
	f := New(opts)
	require.NoError(t, f.Initialize(context.Background(), dev, Infrastructure{
		Prototype:        prototypeAddr,
		Schedule:         domain.DefaultSchedule(),
		WETH:             wethAddr,
		PenaltyCollector: collector,
	}))
	return f, tokens
}

func storedBalance(t *testing.T, s *sharedStores, event, user common.Address) string {
	t.Helper()
	b, err := s.balances.Get(context.Background(), event, user)
	require.NoError(t, err)
	return domain.FormatEther(b.Balance)
}

func TestRestore_DepositsAfterRestartAreRecorded(t *testing.T) {
	ctx := context.Background()
	stores := newSharedStores()
	now := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)

	// first lifetime: create the event and take one deposit
	f1, tokens1 := startFactory(t, stores, &now, true)
	auc := tokens1.GetOrCreate(aucAddr, "AUC")
	require.NoError(t, auc.Mint(ctx, dev, domain.MustParseEther("105")))
	require.NoError(t, auc.Approve(ctx, dev, factoryAddr, domain.MustParseEther("105")))
	weth1, _ := tokens1.Ledger(wethAddr)
	require.NoError(t, weth1.Mint(ctx, alice, domain.MustParseEther("5")))

	p := (&env{now: now}).params()
	ev1, err := f1.CreateRMLaunchEvent(ctx, dev, p)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	require.NoError(t, ev1.DepositETH(ctx, alice, domain.MustParseEther("1")))
	assert.Equal(t, "1", storedBalance(t, stores, ev1.Address(), alice))
	lastSeq := ev1.Info().LastSequence

	// second lifetime over the same stores
	f2, tokens2 := startFactory(t, stores, &now, true)
	n, err := f2.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ev2, err := f2.LaunchEvent(aucAddr)
	require.NoError(t, err)
	assert.Equal(t, ev1.Address(), ev2.Address())
	assert.Equal(t, lastSeq, ev2.Info().LastSequence)
	assert.Equal(t, domain.PhaseActive, ev2.CurrentPhase())

	// holdings are credited to the in-memory ledgers of the new process
	held, err := mustLedger(t, tokens2, aucAddr).BalanceOf(ctx, ev2.Address())
	require.NoError(t, err)
	assert.Equal(t, "105", domain.FormatEther(held))
	held, err = mustLedger(t, tokens2, wethAddr).BalanceOf(ctx, ev2.Address())
	require.NoError(t, err)
	assert.Equal(t, "1", domain.FormatEther(held))

	require.NoError(t, mustLedger(t, tokens2, wethAddr).Mint(ctx, alice, domain.MustParseEther("5")))
	require.NoError(t, ev2.DepositETH(ctx, alice, domain.MustParseEther("2")))
	assert.Equal(t, "3", storedBalance(t, stores, ev2.Address(), alice))

	logged, err := stores.log.GetByLaunchEvent(ctx, ev2.Address())
	require.NoError(t, err)
	for i, le := range logged {
		assert.Equal(t, uint64(i+1), le.Sequence)
	}

	// restoring twice is a no-op; the token keeps its single event
	n, err = f2.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = f2.CreateRMLaunchEvent(ctx, dev, p)
	assert.ErrorIs(t, err, ErrDuplicateAsset)
	assert.Equal(t, 1, f2.NumLaunchEvents())
}

func TestCreateRMLaunchEvent_RegisteredTokenWithoutRestore(t *testing.T) {
	ctx := context.Background()
	stores := newSharedStores()
	now := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)

	f1, tokens1 := startFactory(t, stores, &now, false)
	auc := tokens1.GetOrCreate(aucAddr, "AUC")
	require.NoError(t, auc.Mint(ctx, dev, domain.MustParseEther("105")))
	require.NoError(t, auc.Approve(ctx, dev, factoryAddr, domain.MustParseEther("105")))
	p := (&env{now: now}).params()
	_, err := f1.CreateRMLaunchEvent(ctx, dev, p)
	require.NoError(t, err)

	f2, tokens2 := startFactory(t, stores, &now, false)
	n, err := f2.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no event log configured")

	auc2 := tokens2.GetOrCreate(aucAddr, "AUC")
	require.NoError(t, auc2.Mint(ctx, dev, domain.MustParseEther("105")))
	require.NoError(t, auc2.Approve(ctx, dev, factoryAddr, domain.MustParseEther("105")))

	_, err = f2.CreateRMLaunchEvent(ctx, dev, p)
	assert.ErrorIs(t, err, ErrDuplicateAsset)

	bal, _ := auc2.BalanceOf(ctx, dev)
	assert.Equal(t, "105", domain.FormatEther(bal), "tokens were not pulled")
}

func TestRestore_RequiresInitialize(t *testing.T) {
	stores := newSharedStores()
	f := New(Options{Address: factoryAddr, Owner: dev, Tokens: token.NewMemoryRegistry(),
		Store: stores.launchEvents, Log: stores.log})

	_, err := f.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func mustLedger(t *testing.T, r *token.MemoryRegistry, addr common.Address) *token.Ledger {
	t.Helper()
	l, ok := r.Ledger(addr)
	require.True(t, ok, "ledger %s", addr.Hex())
	return l
}
