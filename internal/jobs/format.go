package jobs

import (
	"fmt"
	"strings"

	"github.com/aristath/vrp-sentinel/internal/pipeline"
)

// FormatDigest renders digest entries as a Markdown message for the
// downstream sink. One line per entry, highest composite first (the
// caller is expected to have already sorted entries via BuildDigest).
func FormatDigest(entries []pipeline.DigestEntry) string {
	if len(entries) == 0 {
		return "No tradeable earnings setups found today."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Earnings VRP Digest* — %d candidates\n\n", len(entries)))

	for _, e := range entries {
		marker := ""
		if e.Score.Tradeable {
			marker = " ✅"
		}
		b.WriteString(fmt.Sprintf(
			"*%s* (%s) — score %.1f%s, VRP %.2fx (%s), %s, size x%.2f\n",
			e.Candidate.Ticker, e.Candidate.EarningsDate,
			e.Score.Composite, marker, e.VRP.Ratio, e.VRP.Tier,
			e.Direction.AdjustedDirection, e.SizeModifier.Modifier,
		))
		if e.SizeModifier.HighBullishWarning {
			b.WriteString("  ⚠️ high bullish sentiment\n")
		}
	}

	return b.String()
}
