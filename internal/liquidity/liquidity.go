// Package liquidity classifies option quotes into a tradeability tier
// from open interest, volume, and bid-ask spread. Pure, no I/O.
package liquidity

// Tier is one of four ordered liquidity classifications, worst last.
type Tier string

const (
	Excellent Tier = "Excellent"
	Good      Tier = "Good"
	Warning   Tier = "Warning"
	Reject    Tier = "Reject"
)

// rank orders tiers so the worst-of-three combine can take a min.
// Lower rank = better.
var rank = map[Tier]int{
	Excellent: 0,
	Good:      1,
	Warning:   2,
	Reject:    3,
}

// ScoreTable is the discrete contribution each tier makes to the
// composite scorer (§4.10). Reject is non-zero because some Reject
// trades still print.
var ScoreTable = map[Tier]float64{
	Excellent: 20,
	Good:      16,
	Warning:   12,
	Reject:    4,
}

// Thresholds configures the three axis classifiers.
type Thresholds struct {
	MinOI, GoodOI, ExcellentOI                   int
	MinVolume, GoodVolume, ExcellentVolume       int
	MaxSpreadPct, GoodSpreadPct, ExcellentSpreadPct float64
}

// Quote is a single option leg's liquidity inputs.
type Quote struct {
	OpenInterest int
	Volume       int
	Bid, Ask     float64 // zero/negative Bid or Ask means missing
}

func worse(a, b Tier) Tier {
	if rank[a] >= rank[b] {
		return a
	}
	return b
}

// classifyOI buckets open interest.
func classifyOI(oi int, th Thresholds) Tier {
	switch {
	case oi >= th.ExcellentOI:
		return Excellent
	case oi >= th.GoodOI:
		return Good
	case oi >= th.MinOI:
		return Warning
	default:
		return Reject
	}
}

// classifyVolume buckets volume.
func classifyVolume(vol int, th Thresholds) Tier {
	switch {
	case vol >= th.ExcellentVolume:
		return Excellent
	case vol >= th.GoodVolume:
		return Good
	case vol >= th.MinVolume:
		return Warning
	default:
		return Reject
	}
}

// classifySpread buckets bid-ask spread as a fraction of mid. A
// missing bid or ask produces a synthetic spread of 1.0 (100%).
func classifySpread(q Quote, th Thresholds) Tier {
	if q.Bid <= 0 || q.Ask <= 0 {
		return Reject
	}

	mid := (q.Bid + q.Ask) / 2
	spreadPct := (q.Ask - q.Bid) / mid

	switch {
	case spreadPct <= th.ExcellentSpreadPct:
		return Excellent
	case spreadPct <= th.GoodSpreadPct:
		return Good
	case spreadPct <= th.MaxSpreadPct:
		return Warning
	default:
		return Reject
	}
}

// Classify combines the three axes via worst-of-three.
func Classify(q Quote, th Thresholds) Tier {
	oiTier := classifyOI(q.OpenInterest, th)
	volTier := classifyVolume(q.Volume, th)
	spreadTier := classifySpread(q, th)

	return worse(worse(oiTier, volTier), spreadTier)
}

// ClassifyStraddle returns the worse of the call-leg and put-leg tiers.
func ClassifyStraddle(call, put Quote, th Thresholds) Tier {
	return worse(Classify(call, th), Classify(put, th))
}

// Score returns the discrete scoring-engine contribution for tier.
func Score(t Tier) float64 {
	return ScoreTable[t]
}
