package launchevent

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"rocket-mimo/internal/domain"
)

// Holdings is what a launch event holds of each asset according to its log.
type Holdings struct {
	Token        *big.Int // auctioned token not yet claimed
	WrappedAsset *big.Int // deposits not yet withdrawn or paid to the issuer
}

// Restore rebuilds an event that was initialized in an earlier process from
// its ledger log, ordered by sequence. Nothing is emitted and the next event
// continues after the last restored sequence. The token ledgers are left
// untouched; the returned holdings say what the event should own.
func (e *LaunchEvent) Restore(ctx context.Context, params domain.LaunchParams, log []*domain.LedgerEvent) (*Holdings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil, ErrAlreadyInitialized
	}
	if len(log) == 0 || log[0].Type != domain.EventLaunchEventCreated {
		return nil, fmt.Errorf("%w: log of %s does not start with %s", ErrCorruptLog, e.address.Hex(), domain.EventLaunchEventCreated)
	}

	erc20, err := e.tokens.ERC20(params.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve token %s: %w", params.Token.Hex(), err)
	}
	e.params = params.Clone()
	e.token = erc20
	e.policy = e.policy.WithBase(params.MaxAllocation)

	paidOut := new(big.Int)
	for _, ev := range log {
		if ev.Sequence != e.seq+1 {
			return nil, fmt.Errorf("%w: expected sequence %d, got %d", ErrCorruptLog, e.seq+1, ev.Sequence)
		}
		e.seq = ev.Sequence
		amount := domain.Copy(ev.Amount)

		switch ev.Type {
		case domain.EventUserDeposited:
			bal := e.balanceLocked(ev.User)
			e.balances[ev.User] = bal.Add(bal, amount)
			e.totalDeposits.Add(e.totalDeposits, amount)
		case domain.EventUserWithdrawn:
			bal := e.balanceLocked(ev.User)
			if bal.Cmp(amount) < 0 {
				return nil, fmt.Errorf("%w: withdrawal %d exceeds balance of %s", ErrCorruptLog, ev.Sequence, ev.User.Hex())
			}
			e.balances[ev.User] = bal.Sub(bal, amount)
			e.totalDeposits.Sub(e.totalDeposits, amount)
			e.totalPenalty.Add(e.totalPenalty, domain.Copy(ev.Penalty))
		case domain.EventPointsConfigured:
			if e.resolve == nil {
				return nil, fmt.Errorf("%w: no points resolver configured", ErrInvalidParams)
			}
			src, err := e.resolve(ctx, ev.User)
			if err != nil {
				return nil, fmt.Errorf("resolve points ledger %s: %w", ev.User.Hex(), err)
			}
			e.policy = e.policy.WithPoints(src, amount.Int64())
			e.pointsLedger = ev.User
		case domain.EventPhaseChanged:
			e.lastPhase = ev.Phase
		case domain.EventAuctionFinalized:
			e.settlement = settle(e.params, e.totalDeposits, time.UnixMilli(ev.Timestamp))
		case domain.EventUserClaimed:
			e.claimed[ev.User] = true
			paidOut.Add(paidOut, amount)
		case domain.EventIssuerClaimed:
			e.issuerClaimed = true
			paidOut.Add(paidOut, amount)
		}
	}
	e.initialized = true

	held := &Holdings{
		Token:        new(big.Int).Sub(e.params.TokenAmount, paidOut),
		WrappedAsset: domain.Copy(e.totalDeposits),
	}
	if e.issuerClaimed {
		held.WrappedAsset = new(big.Int)
	}

	e.logger.Info("launch event restored",
		zap.String("token", params.Token.Hex()),
		zap.Uint64("last_sequence", e.seq),
		zap.String("deposits", domain.FormatEther(e.totalDeposits)),
		zap.Bool("finalized", e.settlement != nil))
	return held, nil
}
