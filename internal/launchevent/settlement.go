package launchevent

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rocket-mimo/internal/domain"
)

// Settlement is the outcome of a finalized auction.
type Settlement struct {
	TotalDeposits   *big.Int // wrapped asset raised
	TokenReserve    *big.Int // tokens for sale, excluding incentives
	Incentives      *big.Int // tokens reserved as participant incentives
	AllocatedTokens *big.Int // tokens sold to participants
	UserIncentives  *big.Int // incentives paid out, pro rata with AllocatedTokens
	FinalizedAt     time.Time
}

// IssuerTokens returns the unsold tokens plus unused incentives.
func (s *Settlement) IssuerTokens() *big.Int {
	out := new(big.Int).Sub(s.TokenReserve, s.AllocatedTokens)
	out.Add(out, s.Incentives)
	return out.Sub(out, s.UserIncentives)
}

func (s *Settlement) clone() *Settlement {
	if s == nil {
		return nil
	}
	return &Settlement{
		TotalDeposits:   domain.Copy(s.TotalDeposits),
		TokenReserve:    domain.Copy(s.TokenReserve),
		Incentives:      domain.Copy(s.Incentives),
		AllocatedTokens: domain.Copy(s.AllocatedTokens),
		UserIncentives:  domain.Copy(s.UserIncentives),
		FinalizedAt:     s.FinalizedAt,
	}
}

// settle computes the settlement for the given deposits. When the deposits
// do not reach the floor price, only deposits/floor tokens are sold.
func settle(p domain.LaunchParams, deposits *big.Int, now time.Time) *Settlement {
	incentives := domain.MulRate(p.TokenAmount, p.TokenIncentivesPercent)
	reserve := new(big.Int).Sub(p.TokenAmount, incentives)

	allocated := new(big.Int).Set(reserve)
	price := new(big.Int).Mul(deposits, domain.WeiPerEther)
	price.Quo(price, reserve)
	if price.Cmp(p.FloorPrice) < 0 {
		allocated.Mul(deposits, domain.WeiPerEther)
		allocated.Quo(allocated, p.FloorPrice)
	}

	userIncentives := new(big.Int).Mul(incentives, allocated)
	userIncentives.Quo(userIncentives, reserve)

	return &Settlement{
		TotalDeposits:   domain.Copy(deposits),
		TokenReserve:    reserve,
		Incentives:      incentives,
		AllocatedTokens: allocated,
		UserIncentives:  userIncentives,
		FinalizedAt:     now,
	}
}

// Finalize closes the auction once it has Ended.
func (e *LaunchEvent) Finalize(_ context.Context) (*Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if e.settlement != nil {
		return nil, ErrAlreadyFinalized
	}
	now := e.clock()
	if phase := e.phaseLocked(now); phase != domain.PhaseEnded {
		return nil, fmt.Errorf("%w: finalize in %s", ErrInvalidPhase, phase)
	}
	return e.finalizeLocked(now).clone(), nil
}

func (e *LaunchEvent) finalizeLocked(now time.Time) *Settlement {
	e.settlement = settle(e.params, e.totalDeposits, now)

	e.emit(domain.LedgerEvent{
		Type:   domain.EventAuctionFinalized,
		Amount: domain.Copy(e.settlement.AllocatedTokens),
	}, now)

	e.logger.Info("auction finalized",
		zap.String("deposits", domain.FormatEther(e.settlement.TotalDeposits)),
		zap.String("allocated", domain.FormatEther(e.settlement.AllocatedTokens)),
		zap.String("user_incentives", domain.FormatEther(e.settlement.UserIncentives)))
	return e.settlement
}

// ensureFinalizedLocked finalizes an Ended auction on first claim.
func (e *LaunchEvent) ensureFinalizedLocked(now time.Time) error {
	if e.settlement != nil {
		return nil
	}
	if phase := e.phaseLocked(now); phase != domain.PhaseEnded {
		return fmt.Errorf("%w: claim in %s", ErrInvalidPhase, phase)
	}
	e.finalizeLocked(now)
	return nil
}

func (e *LaunchEvent) endTime() time.Time {
	return e.params.AuctionStart.Add(e.schedule.Total())
}

// ClaimTokens pays user its pro-rata share of the sold tokens plus
// incentives. Allowed once, after the user timelock.
func (e *LaunchEvent) ClaimTokens(ctx context.Context, user common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	now := e.clock()
	if err := e.ensureFinalizedLocked(now); err != nil {
		return nil, err
	}
	if unlock := e.endTime().Add(e.params.UserTimelock); now.Before(unlock) {
		return nil, fmt.Errorf("%w: user claims open at %s", ErrTimelocked, unlock)
	}

	bal := e.balanceLocked(user)
	if bal.Sign() == 0 || e.claimed[user] {
		return nil, ErrNothingToClaim
	}

	share := e.userShareLocked(bal)
	if share.Sign() > 0 {
		if err := e.token.Transfer(ctx, e.address, user, share); err != nil {
			return nil, fmt.Errorf("claim transfer: %w", err)
		}
	}
	e.claimed[user] = true

	e.emit(domain.LedgerEvent{
		Type:   domain.EventUserClaimed,
		User:   user,
		Amount: domain.Copy(share),
	}, now)
	return share, nil
}

func (e *LaunchEvent) userShareLocked(bal *big.Int) *big.Int {
	s := e.settlement
	if s.TotalDeposits.Sign() == 0 {
		return new(big.Int)
	}
	pool := new(big.Int).Add(s.AllocatedTokens, s.UserIncentives)
	share := pool.Mul(pool, bal)
	return share.Quo(share, s.TotalDeposits)
}

// IssuerClaim is what the issuer receives.
type IssuerClaim struct {
	WrappedAsset *big.Int
	Tokens       *big.Int
}

// ClaimIssuer pays the issuer the raised wrapped asset plus unsold tokens
// and unused incentives. Issuer only, once, after the issuer timelock.
func (e *LaunchEvent) ClaimIssuer(ctx context.Context, caller common.Address) (*IssuerClaim, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if caller != e.params.Issuer {
		return nil, fmt.Errorf("%w: %s is not the issuer", ErrUnauthorized, caller.Hex())
	}
	now := e.clock()
	if err := e.ensureFinalizedLocked(now); err != nil {
		return nil, err
	}
	if unlock := e.endTime().Add(e.params.IssuerTimelock); now.Before(unlock) {
		return nil, fmt.Errorf("%w: issuer claim opens at %s", ErrTimelocked, unlock)
	}
	if e.issuerClaimed {
		return nil, ErrNothingToClaim
	}

	claim := &IssuerClaim{
		WrappedAsset: domain.Copy(e.settlement.TotalDeposits),
		Tokens:       e.settlement.IssuerTokens(),
	}
	if claim.WrappedAsset.Sign() > 0 {
		if err := e.wrapped.Transfer(ctx, e.address, caller, claim.WrappedAsset); err != nil {
			return nil, fmt.Errorf("issuer wrapped asset transfer: %w", err)
		}
	}
	if claim.Tokens.Sign() > 0 {
		if err := e.token.Transfer(ctx, e.address, caller, claim.Tokens); err != nil {
			if rbErr := e.wrapped.Transfer(ctx, caller, e.address, claim.WrappedAsset); rbErr != nil {
				e.logger.Error("issuer claim rollback failed", zap.Error(rbErr))
			}
			return nil, fmt.Errorf("issuer token transfer: %w", err)
		}
	}
	e.issuerClaimed = true

	e.emit(domain.LedgerEvent{
		Type:   domain.EventIssuerClaimed,
		User:   caller,
		Amount: domain.Copy(claim.Tokens),
	}, now)
	return claim, nil
}
