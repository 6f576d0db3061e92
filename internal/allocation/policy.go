// Package allocation computes the maximum amount a user may deposit into a
// launch event: a base cap scaled by an NFT-ownership bonus and, once a
// points ledger is configured, by the user's points.
package allocation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/token"
)

// DefaultNFTMultiplier is the allocation multiplier for NFT holders.
const DefaultNFTMultiplier = 5

// PointsSource supplies per-user point balances.
type PointsSource interface {
	UserPoints(ctx context.Context, user common.Address) (*big.Int, error)
}

// Composition selects how the NFT multiplier and the points bonus combine.
type Composition string

const (
	// ComposeAdditive: nftMultiplier + points, capped at the limit but never
	// below the NFT multiplier. 1 point + NFT -> 6; 99 points, no NFT,
	// limit 100 -> 100.
	ComposeAdditive Composition = "ADDITIVE"

	// ComposeMax: max(nftMultiplier, min(points, limit)).
	ComposeMax Composition = "MAX"
)

// IsValid checks if the composition is known.
func (c Composition) IsValid() bool {
	return c == ComposeAdditive || c == ComposeMax
}

// Options configures a Policy.
type Options struct {
	BaseAllocation *big.Int
	// NFT is the collection whose holders get the bonus. Nil disables it.
	NFT           token.BalanceReader
	NFTMultiplier int64
	// PointsUnit converts raw ledger points into multiplier units.
	// Defaults to 1e18 (points are issued with 18 decimals).
	PointsUnit  *big.Int
	Composition Composition
}

// Policy is immutable; WithPoints returns a reconfigured copy.
type Policy struct {
	base          *big.Int
	nft           token.BalanceReader
	nftMultiplier int64
	pointsUnit    *big.Int
	composition   Composition

	points      PointsSource
	pointsLimit int64
}

// NewPolicy creates a policy without a points ledger.
func NewPolicy(opts Options) *Policy {
	p := &Policy{
		base:          domain.Copy(opts.BaseAllocation),
		nft:           opts.NFT,
		nftMultiplier: opts.NFTMultiplier,
		pointsUnit:    opts.PointsUnit,
		composition:   opts.Composition,
	}
	if p.nftMultiplier <= 0 {
		p.nftMultiplier = DefaultNFTMultiplier
	}
	if !domain.IsPositive(p.pointsUnit) {
		p.pointsUnit = domain.WeiPerEther
	}
	if !p.composition.IsValid() {
		p.composition = ComposeAdditive
	}
	return p
}

// WithPoints returns a copy of the policy using src, capping the points
// multiplier at limit.
func (p *Policy) WithPoints(src PointsSource, limit int64) *Policy {
	cp := *p
	cp.points = src
	cp.pointsLimit = limit
	return &cp
}

// WithBase returns a copy of the policy with a new base allocation.
func (p *Policy) WithBase(base *big.Int) *Policy {
	cp := *p
	cp.base = domain.Copy(base)
	return &cp
}

// Base returns the base allocation.
func (p *Policy) Base() *big.Int { return domain.Copy(p.base) }

// PointsConfigured reports whether a points ledger is set.
func (p *Policy) PointsConfigured() bool { return p.points != nil }

// PointsLimit returns the configured multiplier limit (0 if unset).
func (p *Policy) PointsLimit() int64 { return p.pointsLimit }

// Multiplier returns the integer allocation multiplier of user.
func (p *Policy) Multiplier(ctx context.Context, user common.Address) (int64, error) {
	nftMult := int64(1)
	if p.nft != nil {
		held, err := p.nft.BalanceOf(ctx, user)
		if err != nil {
			return 0, fmt.Errorf("nft balance of %s: %w", user.Hex(), err)
		}
		// ownership is boolean: two NFTs earn the same bonus as one
		if held.Sign() > 0 {
			nftMult = p.nftMultiplier
		}
	}

	if p.points == nil {
		return nftMult, nil
	}

	raw, err := p.points.UserPoints(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("points of %s: %w", user.Hex(), err)
	}
	pts := new(big.Int).Quo(raw, p.pointsUnit)
	if pts.Sign() <= 0 {
		return nftMult, nil
	}

	limit := big.NewInt(p.pointsLimit)
	switch p.composition {
	case ComposeMax:
		if pts.Cmp(limit) > 0 {
			pts = limit
		}
		if pts.Cmp(big.NewInt(nftMult)) > 0 {
			return pts.Int64(), nil
		}
		return nftMult, nil
	default:
		total := new(big.Int).Add(pts, big.NewInt(nftMult))
		if total.Cmp(limit) > 0 {
			total = limit
		}
		if total.Cmp(big.NewInt(nftMult)) < 0 {
			return nftMult, nil
		}
		return total.Int64(), nil
	}
}

// UserMaxAllocation returns base * Multiplier(user). Pure read.
func (p *Policy) UserMaxAllocation(ctx context.Context, user common.Address) (*big.Int, error) {
	m, err := p.Multiplier(ctx, user)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(p.base, big.NewInt(m)), nil
}
