// Package launchevent implements the launch auction state machine: phased
// deposits and withdrawals with a time-decaying penalty, followed by
// finalization and timelocked claims.
package launchevent

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/idhash"
	"rocket-mimo/internal/token"
)

// Clock returns the current time. It must be monotonically non-decreasing.
type Clock func() time.Time

// EventSink receives ledger events in emission order.
type EventSink interface {
	Emit(ev domain.LedgerEvent)
}

// PointsResolver resolves a points ledger address into a readable source.
type PointsResolver func(ctx context.Context, ledger common.Address) (allocation.PointsSource, error)

// Config holds the infrastructure a launch event is created with.
type Config struct {
	Address          common.Address
	Owner            common.Address // may configure the points ledger
	Schedule         domain.Schedule
	PenaltyCollector common.Address
	WrappedAsset     token.ERC20 // deposit currency
	Tokens           token.Registry
	NFT              token.BalanceReader
	Composition      allocation.Composition
	Points           PointsResolver
	Clock            Clock
	Sink             EventSink
	Logger           *zap.Logger
}

// LaunchEvent is a single token auction. All mutating operations hold the
// event lock for their whole duration, including event emission.
type LaunchEvent struct {
	address   common.Address
	owner     common.Address
	schedule  domain.Schedule
	collector common.Address
	wrapped   token.ERC20
	tokens    token.Registry
	resolve   PointsResolver
	clock     Clock
	sink      EventSink
	logger    *zap.Logger

	mu            sync.Mutex
	initialized   bool
	params        domain.LaunchParams
	token         token.ERC20
	policy        *allocation.Policy
	pointsLedger  common.Address
	balances      map[common.Address]*big.Int
	claimed       map[common.Address]bool
	totalDeposits *big.Int
	totalPenalty  *big.Int
	settlement    *Settlement
	issuerClaimed bool
	lastPhase     domain.Phase
	seq           uint64
}

// New creates an uninitialized launch event.
func New(cfg Config) *LaunchEvent {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &LaunchEvent{
		address:   cfg.Address,
		owner:     cfg.Owner,
		schedule:  cfg.Schedule,
		collector: cfg.PenaltyCollector,
		wrapped:   cfg.WrappedAsset,
		tokens:    cfg.Tokens,
		resolve:   cfg.Points,
		clock:     cfg.Clock,
		sink:      cfg.Sink,
		logger:    cfg.Logger.With(zap.String("launch_event", cfg.Address.Hex())),
		policy: allocation.NewPolicy(allocation.Options{
			NFT:         cfg.NFT,
			Composition: cfg.Composition,
		}),
		balances:      make(map[common.Address]*big.Int),
		claimed:       make(map[common.Address]bool),
		totalDeposits: new(big.Int),
		totalPenalty:  new(big.Int),
		lastPhase:     domain.PhaseNotStarted,
	}
}

// Address returns the launch event address.
func (e *LaunchEvent) Address() common.Address { return e.address }

// Schedule returns the phase durations.
func (e *LaunchEvent) Schedule() domain.Schedule { return e.schedule }

// Initialize sets the auction parameters. It succeeds at most once. The
// event must already hold params.TokenAmount of the auctioned token.
func (e *LaunchEvent) Initialize(ctx context.Context, params domain.LaunchParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}

	now := e.clock()
	if err := validateParams(params, now); err != nil {
		return err
	}

	erc20, err := e.tokens.ERC20(params.Token)
	if err != nil {
		return fmt.Errorf("resolve token %s: %w", params.Token.Hex(), err)
	}
	held, err := erc20.BalanceOf(ctx, e.address)
	if err != nil {
		return fmt.Errorf("token balance of %s: %w", e.address.Hex(), err)
	}
	if held.Cmp(params.TokenAmount) < 0 {
		return fmt.Errorf("%w: event holds %s of %s tokens", ErrInvalidParams,
			domain.FormatEther(held), domain.FormatEther(params.TokenAmount))
	}

	e.params = params.Clone()
	e.token = erc20
	e.policy = e.policy.WithBase(params.MaxAllocation)
	e.initialized = true

	e.emit(domain.LedgerEvent{
		Type:   domain.EventLaunchEventCreated,
		User:   params.Issuer,
		Amount: domain.Copy(params.TokenAmount),
	}, now)

	e.logger.Info("launch event initialized",
		zap.String("token", params.Token.Hex()),
		zap.String("issuer", params.Issuer.Hex()),
		zap.Time("auction_start", params.AuctionStart),
		zap.String("amount", domain.FormatEther(params.TokenAmount)))
	return nil
}

func validateParams(p domain.LaunchParams, now time.Time) error {
	switch {
	case p.Issuer == (common.Address{}):
		return fmt.Errorf("%w: issuer is zero address", ErrInvalidParams)
	case p.Token == (common.Address{}):
		return fmt.Errorf("%w: token is zero address", ErrInvalidParams)
	case !p.AuctionStart.After(now):
		return fmt.Errorf("%w: auction start %s is not in the future", ErrInvalidParams, p.AuctionStart)
	case !domain.IsPositive(p.TokenAmount):
		return fmt.Errorf("%w: token amount must be positive", ErrInvalidParams)
	case !domain.IsPositive(p.FixedWithdrawPenalty):
		return fmt.Errorf("%w: fixed penalty must be positive", ErrInvalidParams)
	case p.MaxWithdrawPenalty == nil || p.MaxWithdrawPenalty.Cmp(p.FixedWithdrawPenalty) < 0:
		return fmt.Errorf("%w: max penalty below fixed penalty", ErrInvalidParams)
	case p.MaxWithdrawPenalty.Cmp(MaxPenalty) > 0:
		return fmt.Errorf("%w: max penalty above 50%%", ErrInvalidParams)
	case p.TokenIncentivesPercent == nil || p.TokenIncentivesPercent.Sign() < 0 ||
		p.TokenIncentivesPercent.Cmp(domain.WeiPerEther) >= 0:
		return fmt.Errorf("%w: incentives percent out of range", ErrInvalidParams)
	case !domain.IsPositive(p.FloorPrice):
		return fmt.Errorf("%w: floor price must be positive", ErrInvalidParams)
	case !domain.IsPositive(p.MaxAllocation):
		return fmt.Errorf("%w: max allocation must be positive", ErrInvalidParams)
	case p.UserTimelock < 0 || p.UserTimelock > p.IssuerTimelock:
		return fmt.Errorf("%w: user timelock must not exceed issuer timelock", ErrInvalidParams)
	}
	return nil
}

// SetMasterChefPoint configures the points ledger and the multiplier limit.
// Only the owner may call it.
func (e *LaunchEvent) SetMasterChefPoint(ctx context.Context, caller, ledger common.Address, limit int64) error {
	if caller != e.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	if limit <= 0 {
		return fmt.Errorf("%w: points multiplier limit must be positive", ErrInvalidParams)
	}
	if e.resolve == nil {
		return fmt.Errorf("%w: no points resolver configured", ErrInvalidParams)
	}
	// initialization is one-way, so the check holds once the lock is retaken
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	src, err := e.resolve(ctx, ledger)
	if err != nil {
		return fmt.Errorf("resolve points ledger %s: %w", ledger.Hex(), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.policy = e.policy.WithPoints(src, limit)
	e.pointsLedger = ledger

	now := e.clock()
	e.emit(domain.LedgerEvent{
		Type:   domain.EventPointsConfigured,
		User:   ledger,
		Amount: big.NewInt(limit),
	}, now)

	e.logger.Info("points ledger configured",
		zap.String("ledger", ledger.Hex()), zap.Int64("limit", limit))
	return nil
}

// UserMaxAllocation returns the maximum cumulative deposit of user.
func (e *LaunchEvent) UserMaxAllocation(ctx context.Context, user common.Address) (*big.Int, error) {
	e.mu.Lock()
	policy := e.policy
	e.mu.Unlock()

	return policy.UserMaxAllocation(ctx, user)
}

// CurrentPhase returns the phase at the clock's current time.
func (e *LaunchEvent) CurrentPhase() domain.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phaseLocked(e.clock())
}

// GetPenalty returns the current withdrawal penalty rate (1e18 = 100%).
func (e *LaunchEvent) GetPenalty() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return new(big.Int)
	}
	return e.penaltyLocked(e.clock())
}

func (e *LaunchEvent) phaseLocked(now time.Time) domain.Phase {
	if !e.initialized {
		return domain.PhaseNotStarted
	}
	return PhaseAt(now, e.params.AuctionStart, e.schedule)
}

func (e *LaunchEvent) penaltyLocked(now time.Time) *big.Int {
	return PenaltyRate(now, e.params.AuctionStart, e.schedule,
		e.params.MaxWithdrawPenalty, e.params.FixedWithdrawPenalty)
}

// DepositETH credits amount of the wrapped asset from user. Allowed only in
// the Active phase and up to the user's max allocation.
func (e *LaunchEvent) DepositETH(ctx context.Context, user common.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return fmt.Errorf("%w: deposit amount must be positive", ErrInvalidParams)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	now := e.clock()
	phase := e.phaseLocked(now)
	if !phase.AllowsDeposit() {
		return fmt.Errorf("%w: deposit in %s", ErrInvalidPhase, phase)
	}
	if user == e.params.Issuer {
		return fmt.Errorf("%w: issuer cannot participate", ErrUnauthorized)
	}

	limit, err := e.policy.UserMaxAllocation(ctx, user)
	if err != nil {
		return fmt.Errorf("max allocation: %w", err)
	}
	next := new(big.Int).Add(e.balanceLocked(user), amount)
	if next.Cmp(limit) > 0 {
		return fmt.Errorf("%w: balance would be %s, max %s", ErrAllocationExceeded,
			domain.FormatEther(next), domain.FormatEther(limit))
	}

	if err := e.wrapped.Transfer(ctx, user, e.address, amount); err != nil {
		return fmt.Errorf("deposit transfer: %w", err)
	}

	e.balances[user] = next
	e.totalDeposits.Add(e.totalDeposits, amount)

	e.emit(domain.LedgerEvent{
		Type:   domain.EventUserDeposited,
		User:   user,
		Amount: domain.Copy(amount),
	}, now)

	e.logger.Debug("deposit",
		zap.String("user", user.Hex()),
		zap.String("amount", domain.FormatEther(amount)),
		zap.String("balance", domain.FormatEther(next)))
	return nil
}

// WithdrawETH returns amount minus the current penalty to user and sends the
// penalty to the penalty collector. It returns the penalty charged.
func (e *LaunchEvent) WithdrawETH(ctx context.Context, user common.Address, amount *big.Int) (*big.Int, error) {
	if !domain.IsPositive(amount) {
		return nil, fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidParams)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	now := e.clock()
	phase := e.phaseLocked(now)
	if !phase.AllowsWithdraw() {
		return nil, fmt.Errorf("%w: withdraw in %s", ErrInvalidPhase, phase)
	}

	bal := e.balanceLocked(user)
	if bal.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance,
			domain.FormatEther(bal), domain.FormatEther(amount))
	}

	penalty := domain.MulRate(amount, e.penaltyLocked(now))
	payout := new(big.Int).Sub(amount, penalty)

	if err := e.wrapped.Transfer(ctx, e.address, user, payout); err != nil {
		return nil, fmt.Errorf("withdraw transfer: %w", err)
	}
	if penalty.Sign() > 0 {
		if err := e.wrapped.Transfer(ctx, e.address, e.collector, penalty); err != nil {
			// undo the payout so balances stay consistent
			if rbErr := e.wrapped.Transfer(ctx, user, e.address, payout); rbErr != nil {
				e.logger.Error("withdraw rollback failed", zap.Error(rbErr))
			}
			return nil, fmt.Errorf("penalty transfer: %w", err)
		}
	}

	e.balances[user] = bal.Sub(bal, amount)
	e.totalDeposits.Sub(e.totalDeposits, amount)
	e.totalPenalty.Add(e.totalPenalty, penalty)

	e.emit(domain.LedgerEvent{
		Type:    domain.EventUserWithdrawn,
		User:    user,
		Amount:  domain.Copy(amount),
		Penalty: domain.Copy(penalty),
	}, now)

	e.logger.Debug("withdraw",
		zap.String("user", user.Hex()),
		zap.String("amount", domain.FormatEther(amount)),
		zap.String("penalty", domain.FormatEther(penalty)),
		zap.String("phase", phase.String()))
	return penalty, nil
}

// SyncPhase compares the current phase with the last observed one and emits
// PhaseChanged on a transition. It reports the current phase and whether it
// changed.
func (e *LaunchEvent) SyncPhase() (domain.Phase, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	phase := e.phaseLocked(now)
	if phase == e.lastPhase {
		return phase, false
	}
	e.lastPhase = phase
	e.emit(domain.LedgerEvent{Type: domain.EventPhaseChanged}, now)
	return phase, true
}

func (e *LaunchEvent) balanceLocked(user common.Address) *big.Int {
	if b, ok := e.balances[user]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// emit stamps ev with the next sequence number and hands it to the sink.
// Caller must hold e.mu.
func (e *LaunchEvent) emit(ev domain.LedgerEvent, now time.Time) {
	e.seq++
	ev.Sequence = e.seq
	ev.LaunchEvent = e.address
	ev.Token = e.params.Token
	ev.Phase = e.phaseLocked(now)
	ev.Timestamp = now.UnixMilli()
	ev.EventID = idhash.ComputeEventID(e.address, ev.Sequence, ev.Type)

	if e.sink != nil {
		e.sink.Emit(ev)
	}
}
