package factory

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/idhash"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/points"
	"rocket-mimo/internal/storage/memory"
	"rocket-mimo/internal/token"
)

var (
	dev       = common.HexToAddress("0xde00000000000000000000000000000000000001")
	collector = common.HexToAddress("0xc011ec7000000000000000000000000000000002")
	issuer    = common.HexToAddress("0x1550e40000000000000000000000000000000003")
	alice     = common.HexToAddress("0xa11ce00000000000000000000000000000000004")
	bob       = common.HexToAddress("0xb0b0000000000000000000000000000000000005")

	factoryAddr   = common.HexToAddress("0xfac7000000000000000000000000000000000010")
	prototypeAddr = common.HexToAddress("0x9207000000000000000000000000000000000011")
	wethAddr      = common.HexToAddress("0x7e70000000000000000000000000000000000012")
	nftAddr       = common.HexToAddress("0x0f70000000000000000000000000000000000013")
	ammAddr       = common.HexToAddress("0xa770000000000000000000000000000000000014")
	aucAddr       = common.HexToAddress("0xa0c0000000000000000000000000000000000015")
	chefAddr      = common.HexToAddress("0xc4ef000000000000000000000000000000000016")
)

type env struct {
	factory *Factory
	tokens  *token.MemoryRegistry
	auc     *token.Ledger
	nft     *token.Collection
	chefs   *points.Registry
	store   *memory.LaunchEventStore
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	e := &env{
		tokens: token.NewMemoryRegistry(),
		nft:    token.NewCollection(nftAddr),
		chefs:  points.NewRegistry(),
		store:  memory.NewLaunchEventStore(),
		now:    time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.tokens.GetOrCreate(wethAddr, "WETH")
	e.auc = e.tokens.GetOrCreate(aucAddr, "AUC")

	e.factory = New(Options{
		Address: factoryAddr,
		Owner:   dev,
		Tokens:  e.tokens,
		NFTs: func(context.Context, common.Address) (token.BalanceReader, error) {
			return e.nft, nil
		},
		Points: func(_ context.Context, addr common.Address) (allocation.PointsSource, error) {
			return e.chefs.Get(addr)
		},
		Store:  e.store,
		Clock:  func() time.Time { return e.now },
		Logger: zap.NewNop(),
	})

	require.NoError(t, e.factory.Initialize(ctx, dev, Infrastructure{
		Prototype:        prototypeAddr,
		Schedule:         domain.DefaultSchedule(),
		WETH:             wethAddr,
		PenaltyCollector: collector,
		AMMFactory:       ammAddr,
		NFT:              nftAddr,
	}))

	// issuer mints, hands the tokens to dev, dev approves the factory
	amount := domain.MustParseEther("105")
	require.NoError(t, e.auc.Mint(ctx, issuer, amount))
	require.NoError(t, e.auc.Transfer(ctx, issuer, dev, amount))
	require.NoError(t, e.auc.Approve(ctx, dev, factoryAddr, amount))
	return e
}

func (e *env) params() domain.LaunchParams {
	return domain.LaunchParams{
		Issuer:                 issuer,
		AuctionStart:           e.now.Add(60 * time.Second),
		Token:                  aucAddr,
		TokenAmount:            domain.MustParseEther("105"),
		TokenIncentivesPercent: domain.MustParseEther("0.05"),
		FloorPrice:             domain.MustParseEther("1"),
		MaxWithdrawPenalty:     domain.MustParseEther("0.5"),
		FixedWithdrawPenalty:   domain.MustParseEther("0.4"),
		MaxAllocation:          domain.MustParseEther("5"),
		UserTimelock:           7 * 24 * time.Hour,
		IssuerTimelock:         8 * 24 * time.Hour,
	}
}

func TestCreateRMLaunchEvent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	ev, err := e.factory.CreateRMLaunchEvent(ctx, dev, e.params())
	require.NoError(t, err)

	want := idhash.ComputeLaunchEventAddress(factoryAddr, prototypeAddr, aucAddr)
	assert.Equal(t, want, ev.Address())

	addr, ok := e.factory.GetRMLaunchEvent(aucAddr)
	require.True(t, ok)
	assert.Equal(t, want, addr)

	held, err := e.auc.BalanceOf(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseEther("105"), held)

	rec, err := e.store.GetByToken(ctx, aucAddr)
	require.NoError(t, err)
	assert.Equal(t, want, rec.Address)
	assert.Equal(t, e.now.UnixMilli(), rec.CreatedAt)

	assert.Equal(t, 1, e.factory.NumLaunchEvents())
	assert.Equal(t, domain.PhaseNotStarted, ev.CurrentPhase())
}

func TestCreateRMLaunchEvent_DuplicateAsset(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.factory.CreateRMLaunchEvent(ctx, dev, e.params())
	require.NoError(t, err)

	require.NoError(t, e.auc.Mint(ctx, dev, domain.MustParseEther("105")))
	require.NoError(t, e.auc.Approve(ctx, dev, factoryAddr, domain.MustParseEther("105")))

	_, err = e.factory.CreateRMLaunchEvent(ctx, dev, e.params())
	assert.ErrorIs(t, err, ErrDuplicateAsset)
	assert.Equal(t, 1, e.factory.NumLaunchEvents())

	// the second attempt did not pull tokens
	bal, _ := e.auc.BalanceOf(ctx, dev)
	assert.Equal(t, domain.MustParseEther("105"), bal)
}

func TestCreateRMLaunchEvent_WithoutAllowance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.auc.Approve(ctx, dev, factoryAddr, big.NewInt(0)))

	_, err := e.factory.CreateRMLaunchEvent(ctx, dev, e.params())
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	_, ok := e.factory.GetRMLaunchEvent(aucAddr)
	assert.False(t, ok)
}

func TestCreateRMLaunchEvent_InvalidParamsRefunds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	p := e.params()
	p.AuctionStart = e.now.Add(-time.Minute)
	_, err := e.factory.CreateRMLaunchEvent(ctx, dev, p)
	assert.ErrorIs(t, err, launchevent.ErrInvalidParams)

	bal, _ := e.auc.BalanceOf(ctx, dev)
	assert.Equal(t, domain.MustParseEther("105"), bal)

	// the token can still be launched with valid params
	require.NoError(t, e.auc.Approve(ctx, dev, factoryAddr, domain.MustParseEther("105")))
	_, err = e.factory.CreateRMLaunchEvent(ctx, dev, e.params())
	require.NoError(t, err)
}

func TestInitialize_OnceAndOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := New(Options{Address: factoryAddr, Owner: dev, Tokens: token.NewMemoryRegistry()})

	infra := Infrastructure{
		Prototype:        prototypeAddr,
		Schedule:         domain.DefaultSchedule(),
		WETH:             wethAddr,
		PenaltyCollector: collector,
	}

	_, err := f.CreateRMLaunchEvent(ctx, dev, domain.LaunchParams{Token: aucAddr, TokenAmount: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = f.Initialize(ctx, alice, infra)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// wrapped asset must be a known token
	err = f.Initialize(ctx, dev, infra)
	assert.ErrorIs(t, err, ErrInvalidInfrastructure)

	f.opts.Tokens.(*token.MemoryRegistry).GetOrCreate(wethAddr, "WETH")
	require.NoError(t, f.Initialize(ctx, dev, infra))

	err = f.Initialize(ctx, dev, infra)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	got, ok := f.Infrastructure()
	assert.True(t, ok)
	assert.Equal(t, collector, got.PenaltyCollector)
}

func TestInitialize_RejectsBadSchedule(t *testing.T) {
	f := New(Options{Address: factoryAddr, Owner: dev, Tokens: token.NewMemoryRegistry()})
	err := f.Initialize(context.Background(), dev, Infrastructure{
		Schedule:         domain.Schedule{NoFeeDuration: time.Hour, PhaseOneDuration: time.Hour, PhaseTwoDuration: time.Hour},
		PenaltyCollector: collector,
	})
	assert.ErrorIs(t, err, ErrInvalidInfrastructure)
}

// Mirrors the "check user max allocation" scenario of the launch scripts.
func TestUserMaxAllocation_Scenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	ev, err := e.factory.CreateRMLaunchEvent(ctx, dev, e.params())
	require.NoError(t, err)

	base := domain.MustParseEther("5")
	times := func(n int64) *big.Int { return new(big.Int).Mul(base, big.NewInt(n)) }

	got, err := ev.UserMaxAllocation(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	require.NoError(t, e.nft.Mint(ctx, alice, big.NewInt(0)))
	got, _ = ev.UserMaxAllocation(ctx, alice)
	assert.Equal(t, times(5), got)

	require.NoError(t, e.nft.Mint(ctx, alice, big.NewInt(1)))
	got, _ = ev.UserMaxAllocation(ctx, alice)
	assert.Equal(t, times(5), got)

	chef := e.chefs.Deploy(chefAddr, dev)
	require.NoError(t, chef.AddUserPoints(ctx, dev, alice, domain.MustParseEther("1")))
	require.NoError(t, chef.AddUserPoints(ctx, dev, bob, domain.MustParseEther("99")))
	require.NoError(t, ev.SetMasterChefPoint(ctx, dev, chefAddr, 100))

	got, _ = ev.UserMaxAllocation(ctx, alice)
	assert.Equal(t, times(6), got)
	got, _ = ev.UserMaxAllocation(ctx, bob)
	assert.Equal(t, times(100), got)
}

func TestLaunchEvents_Pagination(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	var tokens []common.Address
	for i := 0; i < 3; i++ {
		addr := common.BigToAddress(big.NewInt(int64(0xa000 + i)))
		l := e.tokens.GetOrCreate(addr, "T")
		require.NoError(t, l.Mint(ctx, dev, big.NewInt(10)))
		require.NoError(t, l.Approve(ctx, dev, factoryAddr, big.NewInt(10)))

		p := e.params()
		p.Token = addr
		p.TokenAmount = big.NewInt(10)
		_, err := e.factory.CreateRMLaunchEvent(ctx, dev, p)
		require.NoError(t, err)
		tokens = append(tokens, addr)
	}

	page := e.factory.LaunchEvents(1, 1)
	require.Len(t, page, 1)
	addr, _ := e.factory.GetRMLaunchEvent(tokens[1])
	assert.Equal(t, addr, page[0].Address())

	assert.Len(t, e.factory.LaunchEvents(0, 0), 3)
	assert.Empty(t, e.factory.LaunchEvents(5, 1))

	_, err := e.factory.LaunchEvent(aucAddr)
	assert.ErrorIs(t, err, ErrUnknownLaunchEvent)
}
