// Package factory implements RocketFactory: the registry that creates at
// most one launch event per token and shares one set of infrastructure
// among them.
package factory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/idhash"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/storage"
	"rocket-mimo/internal/token"
)

var (
	// ErrDuplicateAsset is returned when a token already has a launch event.
	ErrDuplicateAsset = errors.New("factory: token already has a launch event")

	// ErrAlreadyInitialized is returned on a second Initialize.
	ErrAlreadyInitialized = errors.New("factory: already initialized")

	// ErrNotInitialized is returned when creating events before Initialize.
	ErrNotInitialized = errors.New("factory: not initialized")

	// ErrUnauthorized is returned when a non-owner initializes the factory.
	ErrUnauthorized = errors.New("factory: caller is not the owner")

	// ErrUnknownLaunchEvent is returned for tokens without a launch event.
	ErrUnknownLaunchEvent = errors.New("factory: no launch event for token")

	// ErrInvalidInfrastructure is returned for incomplete infrastructure.
	ErrInvalidInfrastructure = errors.New("factory: invalid infrastructure")
)

// Infrastructure is shared by every launch event the factory creates.
type Infrastructure struct {
	Prototype        common.Address
	Schedule         domain.Schedule // prototype phase durations
	WETH             common.Address
	PenaltyCollector common.Address
	AMMFactory       common.Address
	NFT              common.Address
}

// NFTResolver resolves the NFT collection used for the allocation bonus.
type NFTResolver func(ctx context.Context, addr common.Address) (token.BalanceReader, error)

// Options configures a Factory.
type Options struct {
	Address     common.Address
	Owner       common.Address
	Tokens      token.Registry
	NFTs        NFTResolver
	Points      launchevent.PointsResolver
	Composition allocation.Composition
	Store       storage.LaunchEventStore // optional
	Log         storage.EventLogStore    // optional, read by Restore
	Clock       launchevent.Clock
	Sink        launchevent.EventSink
	Logger      *zap.Logger
}

// Factory is the RocketFactory registry.
type Factory struct {
	opts   Options
	logger *zap.Logger

	mu          sync.RWMutex
	initialized bool
	infra       Infrastructure
	weth        token.ERC20
	nft         token.BalanceReader
	events      map[common.Address]*launchevent.LaunchEvent // keyed by token
	order       []common.Address                            // tokens in creation order
}

// New creates an uninitialized factory.
func New(opts Options) *Factory {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Factory{
		opts:   opts,
		logger: opts.Logger.Named("factory"),
		events: make(map[common.Address]*launchevent.LaunchEvent),
	}
}

// Address returns the factory address.
func (f *Factory) Address() common.Address { return f.opts.Address }

// Owner returns the factory owner.
func (f *Factory) Owner() common.Address { return f.opts.Owner }

// Initialize injects the shared infrastructure. Owner only, once.
func (f *Factory) Initialize(ctx context.Context, caller common.Address, infra Infrastructure) error {
	if caller != f.opts.Owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	if !infra.Schedule.IsValid() {
		return fmt.Errorf("%w: schedule %+v", ErrInvalidInfrastructure, infra.Schedule)
	}
	if infra.PenaltyCollector == (common.Address{}) {
		return fmt.Errorf("%w: penalty collector is zero address", ErrInvalidInfrastructure)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return ErrAlreadyInitialized
	}

	weth, err := f.opts.Tokens.ERC20(infra.WETH)
	if err != nil {
		return fmt.Errorf("%w: wrapped asset: %v", ErrInvalidInfrastructure, err)
	}

	var nft token.BalanceReader
	if infra.NFT != (common.Address{}) && f.opts.NFTs != nil {
		nft, err = f.opts.NFTs(ctx, infra.NFT)
		if err != nil {
			return fmt.Errorf("%w: nft: %v", ErrInvalidInfrastructure, err)
		}
	}

	f.infra = infra
	f.weth = weth
	f.nft = nft
	f.initialized = true

	f.logger.Info("factory initialized",
		zap.String("prototype", infra.Prototype.Hex()),
		zap.String("weth", infra.WETH.Hex()),
		zap.String("penalty_collector", infra.PenaltyCollector.Hex()),
		zap.String("amm_factory", infra.AMMFactory.Hex()),
		zap.String("nft", infra.NFT.Hex()))
	return nil
}

// Infrastructure returns the shared infrastructure and whether it is set.
func (f *Factory) Infrastructure() (Infrastructure, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.infra, f.initialized
}

// CreateRMLaunchEvent pulls params.TokenAmount from caller (who must have
// approved the factory), deploys the launch event for params.Token and
// initializes it. Each token gets at most one launch event.
func (f *Factory) CreateRMLaunchEvent(ctx context.Context, caller common.Address, params domain.LaunchParams) (*launchevent.LaunchEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil, ErrNotInitialized
	}
	if _, exists := f.events[params.Token]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, params.Token.Hex())
	}
	if !domain.IsPositive(params.TokenAmount) {
		return nil, fmt.Errorf("%w: token amount must be positive", launchevent.ErrInvalidParams)
	}
	if f.opts.Store != nil {
		// a registered token that was not restored must not get a second event
		_, err := f.opts.Store.GetByToken(ctx, params.Token)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s is registered", ErrDuplicateAsset, params.Token.Hex())
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("lookup token: %w", err)
		}
	}

	erc20, err := f.opts.Tokens.ERC20(params.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	addr := idhash.ComputeLaunchEventAddress(f.opts.Address, f.infra.Prototype, params.Token)
	ev := f.newLaunchEventLocked(addr, f.infra.Schedule)

	if err := erc20.TransferFrom(ctx, f.opts.Address, caller, addr, params.TokenAmount); err != nil {
		return nil, fmt.Errorf("fund launch event: %w", err)
	}
	if err := ev.Initialize(ctx, params); err != nil {
		if rbErr := erc20.Transfer(ctx, addr, caller, params.TokenAmount); rbErr != nil {
			f.logger.Error("refund after failed initialize", zap.Error(rbErr))
		}
		return nil, err
	}

	f.events[params.Token] = ev
	f.order = append(f.order, params.Token)

	if f.opts.Store != nil {
		rec := &domain.LaunchEventRecord{
			Address:   addr,
			Token:     params.Token,
			Params:    params.Clone(),
			Schedule:  f.infra.Schedule,
			CreatedAt: f.opts.Clock().UnixMilli(),
		}
		if err := f.opts.Store.Insert(ctx, rec); err != nil {
			f.logger.Warn("persist launch event", zap.String("token", params.Token.Hex()), zap.Error(err))
		}
	}

	f.logger.Info("launch event created",
		zap.String("token", params.Token.Hex()),
		zap.String("address", addr.Hex()),
		zap.String("issuer", params.Issuer.Hex()))
	return ev, nil
}

func (f *Factory) newLaunchEventLocked(addr common.Address, schedule domain.Schedule) *launchevent.LaunchEvent {
	return launchevent.New(launchevent.Config{
		Address:          addr,
		Owner:            f.opts.Owner,
		Schedule:         schedule,
		PenaltyCollector: f.infra.PenaltyCollector,
		WrappedAsset:     f.weth,
		Tokens:           f.opts.Tokens,
		NFT:              f.nft,
		Composition:      f.opts.Composition,
		Points:           f.opts.Points,
		Clock:            f.opts.Clock,
		Sink:             f.opts.Sink,
		Logger:           f.opts.Logger.Named("launchevent"),
	})
}

// Restore loads every registered launch event that this factory does not
// know yet and rebuilds its state from the event log. It must run after
// Initialize and before new events are created. When the token registry
// keeps balances in memory, the restored event is credited with what its
// log says it holds. Restore returns the number of events restored.
func (f *Factory) Restore(ctx context.Context) (int, error) {
	if f.opts.Store == nil || f.opts.Log == nil {
		return 0, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return 0, ErrNotInitialized
	}
	records, err := f.opts.Store.List(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list launch events: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, ok := f.events[rec.Token]; ok {
			continue
		}
		log, err := f.opts.Log.GetByLaunchEvent(ctx, rec.Address)
		if err != nil {
			return restored, fmt.Errorf("load log of %s: %w", rec.Address.Hex(), err)
		}

		if mem, ok := f.opts.Tokens.(ledgerSource); ok {
			mem.GetOrCreate(rec.Token, "")
		}
		ev := f.newLaunchEventLocked(rec.Address, rec.Schedule)
		held, err := ev.Restore(ctx, rec.Params, log)
		if err != nil {
			return restored, fmt.Errorf("restore %s: %w", rec.Address.Hex(), err)
		}
		if err := f.creditLocked(ctx, rec.Address, rec.Token, held); err != nil {
			return restored, err
		}

		f.events[rec.Token] = ev
		f.order = append(f.order, rec.Token)
		restored++
	}

	if restored > 0 {
		f.logger.Info("launch events restored", zap.Int("count", restored))
	}
	return restored, nil
}

// ledgerSource is implemented by token registries whose ledgers live in
// process memory and can be re-credited after a restart.
type ledgerSource interface {
	GetOrCreate(addr common.Address, symbol string) *token.Ledger
}

// creditLocked tops up the in-memory holdings of a restored event.
func (f *Factory) creditLocked(ctx context.Context, event, tok common.Address, held *launchevent.Holdings) error {
	mem, ok := f.opts.Tokens.(ledgerSource)
	if !ok {
		return nil
	}
	for _, c := range []struct {
		asset common.Address
		want  *big.Int
	}{
		{tok, held.Token},
		{f.infra.WETH, held.WrappedAsset},
	} {
		l := mem.GetOrCreate(c.asset, "")
		have, err := l.BalanceOf(ctx, event)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", event.Hex(), err)
		}
		if missing := new(big.Int).Sub(c.want, have); missing.Sign() > 0 {
			if err := l.Mint(ctx, event, missing); err != nil {
				return fmt.Errorf("credit %s: %w", c.asset.Hex(), err)
			}
		}
	}
	return nil
}

// GetRMLaunchEvent returns the launch event address of token.
func (f *Factory) GetRMLaunchEvent(tok common.Address) (common.Address, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ev, ok := f.events[tok]
	if !ok {
		return common.Address{}, false
	}
	return ev.Address(), true
}

// LaunchEvent returns the launch event of token.
func (f *Factory) LaunchEvent(tok common.Address) (*launchevent.LaunchEvent, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ev, ok := f.events[tok]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLaunchEvent, tok.Hex())
	}
	return ev, nil
}

// NumLaunchEvents returns the number of launch events created.
func (f *Factory) NumLaunchEvents() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// LaunchEvents returns launch events in creation order, paginated.
// A zero limit returns everything after offset.
func (f *Factory) LaunchEvents(offset, limit int) []*launchevent.LaunchEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(f.order) {
		return nil
	}
	tokens := f.order[offset:]
	if limit > 0 && limit < len(tokens) {
		tokens = tokens[:limit]
	}

	out := make([]*launchevent.LaunchEvent, len(tokens))
	for i, tok := range tokens {
		out[i] = f.events[tok]
	}
	return out
}
