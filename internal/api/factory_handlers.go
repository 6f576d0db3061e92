package api

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/factory"
)

type initializeRequest struct {
	Prototype        string `json:"prototype" binding:"required"`
	WETH             string `json:"weth" binding:"required"`
	PenaltyCollector string `json:"penalty_collector" binding:"required"`
	AMMFactory       string `json:"amm_factory"`
	NFT              string `json:"nft"`
	NoFeeDuration    string `json:"no_fee_duration"`
	PhaseOneDuration string `json:"phase_one_duration"`
	PhaseTwoDuration string `json:"phase_two_duration"`
}

func (r initializeRequest) infrastructure() (factory.Infrastructure, error) {
	var (
		infra factory.Infrastructure
		err   error
	)
	if infra.Prototype, err = parseAddress("prototype", r.Prototype); err != nil {
		return infra, err
	}
	if infra.WETH, err = parseAddress("weth", r.WETH); err != nil {
		return infra, err
	}
	if infra.PenaltyCollector, err = parseAddress("penalty_collector", r.PenaltyCollector); err != nil {
		return infra, err
	}
	if infra.AMMFactory, err = optionalAddress("amm_factory", r.AMMFactory); err != nil {
		return infra, err
	}
	if infra.NFT, err = optionalAddress("nft", r.NFT); err != nil {
		return infra, err
	}

	infra.Schedule = domain.DefaultSchedule()
	for _, d := range []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"no_fee_duration", r.NoFeeDuration, &infra.Schedule.NoFeeDuration},
		{"phase_one_duration", r.PhaseOneDuration, &infra.Schedule.PhaseOneDuration},
		{"phase_two_duration", r.PhaseTwoDuration, &infra.Schedule.PhaseTwoDuration},
	} {
		if d.raw == "" {
			continue
		}
		if *d.dst, err = time.ParseDuration(d.raw); err != nil {
			return infra, badRequest("%s: %v", d.field, err)
		}
	}
	return infra, nil
}

func (s *Server) initializeFactory(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	infra, err := req.infrastructure()
	if err != nil {
		abort(c, err)
		return
	}
	if err := s.opts.Factory.Initialize(c.Request.Context(), from, infra); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"initialized": true})
}

type createRequest struct {
	Issuer                 string    `json:"issuer" binding:"required"`
	AuctionStart           time.Time `json:"auction_start" binding:"required"`
	Token                  string    `json:"token" binding:"required"`
	TokenAmount            string    `json:"token_amount" binding:"required"`
	TokenIncentivesPercent string    `json:"token_incentives_percent" binding:"required"`
	FloorPrice             string    `json:"floor_price" binding:"required"`
	MaxWithdrawPenalty     string    `json:"max_withdraw_penalty" binding:"required"`
	FixedWithdrawPenalty   string    `json:"fixed_withdraw_penalty" binding:"required"`
	MaxAllocation          string    `json:"max_allocation" binding:"required"`
	UserTimelock           string    `json:"user_timelock" binding:"required"`
	IssuerTimelock         string    `json:"issuer_timelock" binding:"required"`
}

func (r createRequest) params() (domain.LaunchParams, error) {
	p := domain.LaunchParams{AuctionStart: r.AuctionStart}
	var err error

	if p.Issuer, err = parseAddress("issuer", r.Issuer); err != nil {
		return p, err
	}
	if p.Token, err = parseAddress("token", r.Token); err != nil {
		return p, err
	}
	for _, a := range []struct {
		field string
		raw   string
		dst   **big.Int
	}{
		{"token_amount", r.TokenAmount, &p.TokenAmount},
		{"token_incentives_percent", r.TokenIncentivesPercent, &p.TokenIncentivesPercent},
		{"floor_price", r.FloorPrice, &p.FloorPrice},
		{"max_withdraw_penalty", r.MaxWithdrawPenalty, &p.MaxWithdrawPenalty},
		{"fixed_withdraw_penalty", r.FixedWithdrawPenalty, &p.FixedWithdrawPenalty},
		{"max_allocation", r.MaxAllocation, &p.MaxAllocation},
	} {
		if *a.dst, err = parseEther(a.field, a.raw); err != nil {
			return p, err
		}
	}
	if p.UserTimelock, err = time.ParseDuration(r.UserTimelock); err != nil {
		return p, badRequest("user_timelock: %v", err)
	}
	if p.IssuerTimelock, err = time.ParseDuration(r.IssuerTimelock); err != nil {
		return p, badRequest("issuer_timelock: %v", err)
	}
	return p, nil
}

func (s *Server) createLaunchEvent(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	params, err := req.params()
	if err != nil {
		abort(c, err)
		return
	}

	ev, err := s.opts.Factory.CreateRMLaunchEvent(c.Request.Context(), from, params)
	if err != nil {
		abort(c, err)
		return
	}

	data, err := s.opts.Lens.LaunchEvent(params.Token)
	if err != nil {
		abort(c, err)
		return
	}
	c.Header("Location", "/launch-events/"+params.Token.Hex())
	c.JSON(http.StatusCreated, gin.H{
		"address":      ev.Address().Hex(),
		"launch_event": newLaunchEventView(data),
	})
}

func (s *Server) getLaunchEventAddress(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	addr, ok := s.opts.Factory.GetRMLaunchEvent(tok)
	if !ok {
		abort(c, fmt.Errorf("%w: %s", factory.ErrUnknownLaunchEvent, tok.Hex()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok.Hex(), "address": addr.Hex()})
}
