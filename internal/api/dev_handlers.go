package api

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dev routes stand in for the deployment scripts: minting test tokens and
// NFTs, approving the factory and seeding points.

type mintRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Symbol string `json:"symbol"`
}

func (s *Server) devMint(c *gin.Context) {
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		abort(c, err)
		return
	}
	amount, err := parseEther("amount", req.Amount)
	if err != nil {
		abort(c, err)
		return
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = "TKN"
	}
	ledger := s.opts.Tokens.GetOrCreate(tok, symbol)
	if err := ledger.Mint(c.Request.Context(), to, amount); err != nil {
		abort(c, err)
		return
	}
	bal, err := ledger.BalanceOf(c.Request.Context(), to)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok.Hex(), "to": to.Hex(), "balance": ether(bal)})
}

type approveRequest struct {
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

func (s *Server) devApprove(c *gin.Context) {
	owner, err := caller(c)
	if err != nil {
		abort(c, err)
		return
	}
	tok, err := parseAddress("token", c.Param("token"))
	if err != nil {
		abort(c, err)
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		abort(c, err)
		return
	}
	amount, err := parseEther("amount", req.Amount)
	if err != nil {
		abort(c, err)
		return
	}

	erc20, err := s.opts.Tokens.ERC20(tok)
	if err != nil {
		abort(c, err)
		return
	}
	if err := erc20.Approve(c.Request.Context(), owner, spender, amount); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner.Hex(), "spender": spender.Hex(), "allowance": ether(amount)})
}

type mintNFTRequest struct {
	To      string `json:"to" binding:"required"`
	TokenID *int64 `json:"token_id" binding:"required"`
}

func (s *Server) devMintNFT(c *gin.Context) {
	if s.opts.NFT == nil {
		abort(c, errors.New("no nft collection configured"))
		return
	}
	var req mintNFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		abort(c, err)
		return
	}
	if err := s.opts.NFT.Mint(c.Request.Context(), to, big.NewInt(*req.TokenID)); err != nil {
		abort(c, err)
		return
	}
	bal, err := s.opts.NFT.BalanceOf(c.Request.Context(), to)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": s.opts.NFT.Address().Hex(), "to": to.Hex(), "balance": bal.String()})
}

type pointsRequest struct {
	Ledger string `json:"ledger" binding:"required"`
	User   string `json:"user" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// devAddPoints deploys the ledger on first use, owned by the caller.
func (s *Server) devAddPoints(c *gin.Context) {
	from, err := caller(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	ledgerAddr, err := parseAddress("ledger", req.Ledger)
	if err != nil {
		abort(c, err)
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		abort(c, err)
		return
	}
	amount, err := parseEther("amount", req.Amount)
	if err != nil {
		abort(c, err)
		return
	}

	ledger := s.opts.Points.Deploy(ledgerAddr, from)
	if err := ledger.AddUserPoints(c.Request.Context(), from, user, amount); err != nil {
		abort(c, err)
		return
	}
	total, err := ledger.UserPoints(c.Request.Context(), user)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ledger":       ledgerAddr.Hex(),
		"user":         user.Hex(),
		"points":       ether(total),
		"total_points": ether(ledger.TotalPoints()),
	})
}
