package lens

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

// RenderMarkdown renders launch event views as a Markdown report.
func RenderMarkdown(rows []LaunchEventData, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Launch Events\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.UTC().Format(time.RFC3339)))

	if len(rows) == 0 {
		sb.WriteString("No launch events.\n")
		return sb.String()
	}

	// Summary
	sb.WriteString("| Token | Phase | Deposits | Penalty Rate | Participants | Finalized |\n")
	sb.WriteString("|-------|-------|----------|--------------|--------------|-----------|\n")
	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %s |\n",
			d.Token.Hex(), d.Phase, domain.FormatEther(d.TotalDeposits),
			percent(d), d.Participants, yesNo(d.Finalized)))
	}
	sb.WriteString("\n")

	// Details
	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("## %s\n\n", d.Token.Hex()))
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Launch Event | %s |\n", d.Address.Hex()))
		sb.WriteString(fmt.Sprintf("| Issuer | %s |\n", d.Issuer.Hex()))
		sb.WriteString(fmt.Sprintf("| Auction Start | %s |\n", formatTime(d.AuctionStart)))
		sb.WriteString(fmt.Sprintf("| End | %s |\n", formatTime(d.EndTime)))
		sb.WriteString(fmt.Sprintf("| Tokens | %s |\n", domain.FormatEther(d.TokenAmount)))
		sb.WriteString(fmt.Sprintf("| Floor Price | %s |\n", domain.FormatEther(d.FloorPrice)))
		sb.WriteString(fmt.Sprintf("| Max Allocation | %s |\n", domain.FormatEther(d.MaxAllocation)))
		sb.WriteString(fmt.Sprintf("| Penalty (max / fixed) | %s / %s |\n",
			domain.FormatEther(d.MaxPenalty), domain.FormatEther(d.FixedPenalty)))
		sb.WriteString(fmt.Sprintf("| Total Penalty | %s |\n", domain.FormatEther(d.TotalPenalty)))
		if d.PointsLedger != (common.Address{}) {
			sb.WriteString(fmt.Sprintf("| Points Ledger | %s (limit x%d) |\n", d.PointsLedger.Hex(), d.PointsLimit))
		}
		if d.Finalized {
			sb.WriteString(fmt.Sprintf("| Allocated Tokens | %s |\n", domain.FormatEther(d.AllocatedTokens)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// percent renders the current penalty rate, e.g. "40%".
func percent(d LaunchEventData) string {
	return domain.FormatEther(domain.MulRate(d.PenaltyRate, domain.MustParseEther("100"))) + "%"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
