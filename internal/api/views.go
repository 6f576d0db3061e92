package api

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/lens"
)

// Amounts are rendered in ether, rates as 1e18-scaled fractions in ether
// form ("0.5" is 50%).

type launchEventView struct {
	Address           string    `json:"address"`
	Token             string    `json:"token"`
	Issuer            string    `json:"issuer"`
	Phase             string    `json:"phase"`
	AuctionStart      time.Time `json:"auction_start"`
	EndTime           time.Time `json:"end_time"`
	TokenAmount       string    `json:"token_amount"`
	IncentivesPercent string    `json:"token_incentives_percent"`
	FloorPrice        string    `json:"floor_price"`
	MaxAllocation     string    `json:"max_allocation"`
	MaxPenalty        string    `json:"max_withdraw_penalty"`
	FixedPenalty      string    `json:"fixed_withdraw_penalty"`
	PenaltyRate       string    `json:"penalty_rate"`
	TotalDeposits     string    `json:"total_deposits"`
	TotalPenalty      string    `json:"total_penalty"`
	Participants      int       `json:"participants"`
	PointsLedger      string    `json:"points_ledger,omitempty"`
	PointsLimit       int64     `json:"points_limit,omitempty"`
	Finalized         bool      `json:"finalized"`
	AllocatedTokens   string    `json:"allocated_tokens,omitempty"`
}

func newLaunchEventView(d lens.LaunchEventData) launchEventView {
	v := launchEventView{
		Address:           d.Address.Hex(),
		Token:             d.Token.Hex(),
		Issuer:            d.Issuer.Hex(),
		Phase:             d.Phase.String(),
		AuctionStart:      d.AuctionStart.UTC(),
		EndTime:           d.EndTime.UTC(),
		TokenAmount:       domain.FormatEther(d.TokenAmount),
		IncentivesPercent: domain.FormatEther(d.IncentivesPercent),
		FloorPrice:        domain.FormatEther(d.FloorPrice),
		MaxAllocation:     domain.FormatEther(d.MaxAllocation),
		MaxPenalty:        domain.FormatEther(d.MaxPenalty),
		FixedPenalty:      domain.FormatEther(d.FixedPenalty),
		PenaltyRate:       domain.FormatEther(d.PenaltyRate),
		TotalDeposits:     domain.FormatEther(d.TotalDeposits),
		TotalPenalty:      domain.FormatEther(d.TotalPenalty),
		Participants:      d.Participants,
		PointsLimit:       d.PointsLimit,
		Finalized:         d.Finalized,
	}
	if d.PointsLimit > 0 {
		v.PointsLedger = d.PointsLedger.Hex()
	}
	if d.AllocatedTokens != nil {
		v.AllocatedTokens = domain.FormatEther(d.AllocatedTokens)
	}
	return v
}

type userView struct {
	LaunchEvent   string `json:"launch_event"`
	User          string `json:"user"`
	Balance       string `json:"balance"`
	MaxAllocation string `json:"max_allocation"`
	Claimed       bool   `json:"claimed"`
}

func newUserView(d lens.UserData) userView {
	return userView{
		LaunchEvent:   d.LaunchEvent.Hex(),
		User:          d.User.Hex(),
		Balance:       domain.FormatEther(d.Balance),
		MaxAllocation: domain.FormatEther(d.MaxAllocation),
		Claimed:       d.Claimed,
	}
}

type userEventView struct {
	Sequence  uint64    `json:"sequence"`
	Type      string    `json:"type"`
	Phase     string    `json:"phase"`
	Amount    string    `json:"amount"`
	Penalty   string    `json:"penalty,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newUserEventViews(history []lens.UserEvent) []userEventView {
	out := make([]userEventView, 0, len(history))
	for _, e := range history {
		v := userEventView{
			Sequence:  e.Sequence,
			Type:      e.Type.String(),
			Phase:     e.Phase.String(),
			Amount:    ether(e.Amount),
			Timestamp: e.Timestamp,
		}
		if e.Penalty != nil {
			v.Penalty = ether(e.Penalty)
		}
		out = append(out, v)
	}
	return out
}

type settlementView struct {
	TotalDeposits   string    `json:"total_deposits"`
	TokenReserve    string    `json:"token_reserve"`
	Incentives      string    `json:"incentives"`
	AllocatedTokens string    `json:"allocated_tokens"`
	UserIncentives  string    `json:"user_incentives"`
	IssuerTokens    string    `json:"issuer_tokens"`
	FinalizedAt     time.Time `json:"finalized_at"`
}

func newSettlementView(s *launchevent.Settlement) settlementView {
	return settlementView{
		TotalDeposits:   domain.FormatEther(s.TotalDeposits),
		TokenReserve:    domain.FormatEther(s.TokenReserve),
		Incentives:      domain.FormatEther(s.Incentives),
		AllocatedTokens: domain.FormatEther(s.AllocatedTokens),
		UserIncentives:  domain.FormatEther(s.UserIncentives),
		IssuerTokens:    domain.FormatEther(s.IssuerTokens()),
		FinalizedAt:     s.FinalizedAt.UTC(),
	}
}

// logView is a receipt log in eth_getLogs form.
type logView struct {
	Address string        `json:"address"`
	Topics  []string      `json:"topics"`
	Data    hexutil.Bytes `json:"data"`
}

func newLogView(l *types.Log) logView {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = t.Hex()
	}
	return logView{Address: l.Address.Hex(), Topics: topics, Data: l.Data}
}

func ether(v *big.Int) string { return domain.FormatEther(v) }
