package api

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/events"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/lens"
)

func (s *Server) listLaunchEvents(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		abort(c, badRequest("offset must be a non-negative integer"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		abort(c, badRequest("limit must be a non-negative integer"))
		return
	}

	rows := s.opts.Lens.LaunchEvents(offset, limit)

	switch format := c.DefaultQuery("format", "json"); format {
	case "csv":
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(lens.RenderCSV(rows)))
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(lens.RenderMarkdown(rows, s.opts.Clock())))
	case "json":
		views := make([]launchEventView, len(rows))
		for i, r := range rows {
			views[i] = newLaunchEventView(r)
		}
		c.JSON(http.StatusOK, gin.H{
			"total":         s.opts.Lens.Count(),
			"offset":        offset,
			"launch_events": views,
		})
	default:
		abort(c, badRequest("format %q is not json, csv or markdown", format))
	}
}

func (s *Server) getLaunchEvent(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	data, err := s.opts.Lens.LaunchEvent(tok)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newLaunchEventView(data))
}

func (s *Server) getUser(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	user, err := parseAddress("user", c.Param("user"))
	if err != nil {
		abort(c, err)
		return
	}
	data, err := s.opts.Lens.User(c.Request.Context(), tok, user)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(data))
}

func (s *Server) getUserHistory(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	user, err := parseAddress("user", c.Param("user"))
	if err != nil {
		abort(c, err)
		return
	}
	history, err := s.opts.Lens.UserHistory(c.Request.Context(), tok, user)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":   user.Hex(),
		"events": newUserEventViews(history),
	})
}

// target resolves the launch event of the :token path parameter and the caller.
func (s *Server) target(c *gin.Context) (*launchevent.LaunchEvent, common.Address, bool) {
	from, err := caller(c)
	if err != nil {
		abort(c, err)
		return nil, common.Address{}, false
	}
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return nil, common.Address{}, false
	}
	ev, err := s.opts.Factory.LaunchEvent(tok)
	if err != nil {
		abort(c, err)
		return nil, common.Address{}, false
	}
	return ev, from, true
}

// receiptLogs renders the log a contract call would have emitted.
func (s *Server) receiptLogs(ev *launchevent.LaunchEvent, le domain.LedgerEvent) []logView {
	le.LaunchEvent = ev.Address()
	le.Sequence = ev.Info().LastSequence
	l, err := events.EncodeLog(le)
	if err != nil {
		s.logger.Warn("encode log", zap.String("type", le.Type.String()), zap.Error(err))
		return []logView{}
	}
	return []logView{newLogView(l)}
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (s *Server) deposit(c *gin.Context) {
	ev, from, ok := s.target(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	amount, err := parseEther("amount", req.Amount)
	if err != nil {
		abort(c, err)
		return
	}

	if err := ev.DepositETH(c.Request.Context(), from, amount); err != nil {
		abort(c, err)
		return
	}

	info, err := ev.UserInfo(c.Request.Context(), from)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    from.Hex(),
		"amount":  ether(amount),
		"balance": ether(info.Balance),
		"logs": s.receiptLogs(ev, domain.LedgerEvent{
			Type:   domain.EventUserDeposited,
			User:   from,
			Amount: amount,
		}),
	})
}

func (s *Server) withdraw(c *gin.Context) {
	ev, from, ok := s.target(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	amount, err := parseEther("amount", req.Amount)
	if err != nil {
		abort(c, err)
		return
	}

	penalty, err := ev.WithdrawETH(c.Request.Context(), from, amount)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    from.Hex(),
		"amount":  ether(amount),
		"penalty": ether(penalty),
		"payout":  ether(new(big.Int).Sub(amount, penalty)),
		"logs": s.receiptLogs(ev, domain.LedgerEvent{
			Type:    domain.EventUserWithdrawn,
			User:    from,
			Amount:  amount,
			Penalty: penalty,
		}),
	})
}

type masterChefPointRequest struct {
	Ledger string `json:"ledger" binding:"required"`
	Limit  int64  `json:"limit" binding:"required"`
}

func (s *Server) setMasterChefPoint(c *gin.Context) {
	ev, from, ok := s.target(c)
	if !ok {
		return
	}
	var req masterChefPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	ledger, err := parseAddress("ledger", req.Ledger)
	if err != nil {
		abort(c, err)
		return
	}
	if err := ev.SetMasterChefPoint(c.Request.Context(), from, ledger, req.Limit); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ledger": ledger.Hex(), "limit": req.Limit})
}

func (s *Server) finalize(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	ev, err := s.opts.Factory.LaunchEvent(tok)
	if err != nil {
		abort(c, err)
		return
	}
	settlement, err := ev.Finalize(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettlementView(settlement))
}

func (s *Server) claim(c *gin.Context) {
	ev, from, ok := s.target(c)
	if !ok {
		return
	}
	share, err := ev.ClaimTokens(c.Request.Context(), from)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":   from.Hex(),
		"tokens": ether(share),
		"logs": s.receiptLogs(ev, domain.LedgerEvent{
			Type:   domain.EventUserClaimed,
			User:   from,
			Amount: share,
		}),
	})
}

func (s *Server) issuerClaim(c *gin.Context) {
	ev, from, ok := s.target(c)
	if !ok {
		return
	}
	claim, err := ev.ClaimIssuer(c.Request.Context(), from)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"issuer":        from.Hex(),
		"wrapped_asset": ether(claim.WrappedAsset),
		"tokens":        ether(claim.Tokens),
		"logs": s.receiptLogs(ev, domain.LedgerEvent{
			Type:   domain.EventIssuerClaimed,
			User:   from,
			Amount: claim.Tokens,
		}),
	})
}

type divergenceView struct {
	Field    string `json:"field"`
	User     string `json:"user,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// verify replays the stored event log against user_balances and the live
// auction.
func (s *Server) verify(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	ev, err := s.opts.Factory.LaunchEvent(tok)
	if err != nil {
		abort(c, err)
		return
	}
	report, err := s.opts.Verifier.Verify(c.Request.Context(), ev.Address(), ev)
	if err != nil {
		abort(c, err)
		return
	}

	divergences := make([]divergenceView, len(report.Divergences))
	for i, d := range report.Divergences {
		divergences[i] = divergenceView{Field: d.Field, Expected: d.Expected, Actual: d.Actual}
		if d.User != (common.Address{}) {
			divergences[i].User = d.User.Hex()
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"launch_event":   report.LaunchEvent.Hex(),
		"match":          report.Match,
		"events":         report.Events,
		"users":          report.Users,
		"last_sequence":  report.LastSequence,
		"total_deposits": ether(report.TotalDeposits),
		"total_penalty":  ether(report.TotalPenalty),
		"divergences":    divergences,
	})
}
