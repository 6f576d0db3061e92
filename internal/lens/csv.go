package lens

import (
	"fmt"
	"strings"
	"time"

	"rocket-mimo/internal/domain"
)

// RenderCSV renders launch event views as CSV string. Amounts are in ether.
func RenderCSV(rows []LaunchEventData) string {
	var sb strings.Builder

	// Header
	sb.WriteString("address,token,issuer,phase,auction_start,end_time,token_amount,incentives_percent,")
	sb.WriteString("floor_price,max_allocation,penalty_rate,total_deposits,total_penalty,participants,finalized\n")

	// Rows
	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%d,%t\n",
			d.Address.Hex(),
			d.Token.Hex(),
			d.Issuer.Hex(),
			d.Phase,
			formatTime(d.AuctionStart),
			formatTime(d.EndTime),
			domain.FormatEther(d.TokenAmount),
			domain.FormatEther(d.IncentivesPercent),
			domain.FormatEther(d.FloorPrice),
			domain.FormatEther(d.MaxAllocation),
			domain.FormatEther(d.PenaltyRate),
			domain.FormatEther(d.TotalDeposits),
			domain.FormatEther(d.TotalPenalty),
			d.Participants,
			d.Finalized,
		))
	}

	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
