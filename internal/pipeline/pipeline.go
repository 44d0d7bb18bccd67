// Package pipeline implements the 6-step earnings digest orchestrator:
// per-candidate VRP evaluation (bounded worker pool, per-ticker failure
// isolation), a VRP-ratio floor filter, top-K sentiment enrichment
// against the hot cache/budget/fallback chain, composite scoring and
// sentiment-adjusted direction, deterministic sort, and truncation to
// the configured digest size.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/vrp-sentinel/internal/breaker"
	"github.com/aristath/vrp-sentinel/internal/budget"
	"github.com/aristath/vrp-sentinel/internal/historicalmoves"
	"github.com/aristath/vrp-sentinel/internal/liquidity"
	"github.com/aristath/vrp-sentinel/internal/ratelimit"
	"github.com/aristath/vrp-sentinel/internal/scoring"
	"github.com/aristath/vrp-sentinel/internal/sentiment"
	"github.com/aristath/vrp-sentinel/internal/vendors"
	"github.com/aristath/vrp-sentinel/internal/vrp"
	"github.com/aristath/vrp-sentinel/internal/utils"
)

// Candidate is one earnings event under consideration for the digest.
type Candidate struct {
	Ticker       string
	EarningsDate string // YYYY-MM-DD
}

// VRPEvaluation is the per-candidate result of evaluate_vrp.
type VRPEvaluation struct {
	Candidate       Candidate
	VRP             vrp.Result
	ImpliedMovePct  float64
	LiquidityTier   liquidity.Tier
	SkewBias        scoring.SkewBias
	UsedRealOptions bool
	SkipReason      string
}

// DigestEntry is one fully-scored row in the final digest.
type DigestEntry struct {
	Candidate    Candidate
	VRP          vrp.Result
	Consistency  float64
	Liquidity    liquidity.Tier
	SkewBias     scoring.SkewBias
	Sentiment    *sentiment.Record
	Score        scoring.Score
	Direction    scoring.DirectionResult
	SizeModifier scoring.SizeModifierResult
}

// Config bundles the tunables the orchestrator needs from the service
// configuration, independent of the config package to keep this package
// free of an import cycle and independently testable.
type Config struct {
	MinHistoricalMoves int
	VRPThresholds      vrp.Thresholds
	LiquidityThresholds liquidity.Thresholds
	Weights            scoring.Weights
	TradeableThreshold float64
	VRPRatioFloor      float64
	MaxDigestSize      int
	PaidSentimentCost  float64
	WorkerCount        int
}

// Orchestrator wires the pure engines to the durable stores and vendor
// collaborators needed to run the digest pipeline end to end.
type Orchestrator struct {
	cfg Config
	log zerolog.Logger

	historical *historicalmoves.Store
	sentiment  *sentiment.Store
	budget     *budget.Tracker

	optionsVendor  vendors.OptionsData
	optionsLimiter *ratelimit.Bucket
	optionsBreaker *breaker.Breaker

	sentimentVendor  vendors.SentimentVendor
	sentimentLimiter *ratelimit.Bucket
	sentimentBreaker *breaker.Breaker

	webSearchVendor vendors.WebSearchVendor
}

// New builds an Orchestrator. webSearchVendor may be nil: the fallback
// step is then simply skipped.
func New(
	cfg Config,
	log zerolog.Logger,
	historical *historicalmoves.Store,
	sentimentStore *sentiment.Store,
	budgetTracker *budget.Tracker,
	optionsVendor vendors.OptionsData,
	optionsLimiter *ratelimit.Bucket,
	optionsBreaker *breaker.Breaker,
	sentimentVendor vendors.SentimentVendor,
	sentimentLimiter *ratelimit.Bucket,
	sentimentBreaker *breaker.Breaker,
	webSearchVendor vendors.WebSearchVendor,
) *Orchestrator {
	return &Orchestrator{
		cfg:              cfg,
		log:              log.With().Str("component", "pipeline").Logger(),
		historical:       historical,
		sentiment:        sentimentStore,
		budget:           budgetTracker,
		optionsVendor:    optionsVendor,
		optionsLimiter:   optionsLimiter,
		optionsBreaker:   optionsBreaker,
		sentimentVendor:  sentimentVendor,
		sentimentLimiter: sentimentLimiter,
		sentimentBreaker: sentimentBreaker,
		webSearchVendor:  webSearchVendor,
	}
}

// EvaluateVRP runs evaluate_vrp for a single candidate: it requires a
// minimum historical sample, prefers a live options-chain implied move,
// and falls back to the historical mean (tagged UsedRealOptions=false)
// when the vendor is rate-limited, breaker-open, or errors. A candidate
// with insufficient history returns SkipReason set, VRP.Tier Skip and a
// zero ratio.
func (o *Orchestrator) EvaluateVRP(ctx context.Context, c Candidate) (VRPEvaluation, error) {
	history, err := o.historical.AbsHistory(ctx, c.Ticker)
	if err != nil {
		return VRPEvaluation{}, fmt.Errorf("load history for %s: %w", c.Ticker, err)
	}
	if len(history) < o.cfg.MinHistoricalMoves {
		return VRPEvaluation{
			Candidate:  c,
			VRP:        vrp.Result{Tier: vrp.Skip, Reason: "insufficient historical moves"},
			SkipReason: "insufficient historical moves",
		}, nil
	}

	impliedMovePct, liqTier, skew, usedReal := o.impliedMove(ctx, c, history)

	result := vrp.Evaluate(impliedMovePct, history, o.cfg.MinHistoricalMoves, o.cfg.VRPThresholds)

	return VRPEvaluation{
		Candidate:       c,
		VRP:             result,
		ImpliedMovePct:  impliedMovePct,
		LiquidityTier:   liqTier,
		SkewBias:        skew,
		UsedRealOptions: usedReal,
	}, nil
}

// impliedMove fetches the ATM straddle and derives the implied move; on
// any rate-limit refusal, breaker-open, or vendor error it falls back to
// the historical mean with liquidity tier Reject so the composite score
// never credits a synthetic fill with real liquidity.
func (o *Orchestrator) impliedMove(ctx context.Context, c Candidate, history []float64) (float64, liquidity.Tier, scoring.SkewBias, bool) {
	fallback := func() (float64, liquidity.Tier, scoring.SkewBias, bool) {
		sum := 0.0
		for _, h := range history {
			sum += h
		}
		mean := sum / float64(len(history))
		o.logIVObservation(ctx, c, mean, 0, "historical_mean")
		return mean, liquidity.Reject, scoring.SkewNeutral, false
	}

	if o.optionsVendor == nil {
		return fallback()
	}

	if err := o.optionsLimiter.Acquire(ctx, 1, false); err != nil {
		o.log.Warn().Str("ticker", c.Ticker).Msg("options vendor rate-limited, falling back to historical mean")
		return fallback()
	}

	var chain vendors.OptionChain
	callErr := o.optionsBreaker.Call(ctx, func(ctx context.Context) error {
		expirations, err := o.optionsVendor.GetExpirations(ctx, c.Ticker)
		if err != nil {
			return err
		}
		if len(expirations) == 0 {
			return vendors.NewError(vendors.KindNoData, fmt.Errorf("no expirations for %s", c.Ticker))
		}
		fetched, err := o.optionsVendor.GetOptionChain(ctx, c.Ticker, expirations[0])
		if err != nil {
			return err
		}
		chain = fetched
		return nil
	})
	if callErr != nil {
		o.log.Warn().Err(callErr).Str("ticker", c.Ticker).Msg("options vendor unavailable, falling back to historical mean")
		return fallback()
	}

	tier := liquidity.ClassifyStraddle(chain.ATMCall.ToLiquidityQuote(), chain.ATMPut.ToLiquidityQuote(), o.cfg.LiquidityThresholds)
	if tier == liquidity.Reject {
		v, _, _, _ := fallback()
		return v, tier, scoring.SkewNeutral, false
	}

	move := vendors.ImpliedMoveFromStraddle(chain)
	o.logIVObservation(ctx, c, move, chain.ATMIV, "options_chain")
	return move, tier, chain.SkewBias, true
}

// logIVObservation journals an implied-move reading into the historical
// moves store's iv_log table. Logging failures are non-fatal: the
// observation is a bookkeeping record (readable through
// historicalmoves.Store.UsedRealOptionsRecently), not load-bearing for
// the digest itself.
func (o *Orchestrator) logIVObservation(ctx context.Context, c Candidate, impliedMovePct, atmIV float64, source string) {
	obs := historicalmoves.IVObservation{
		Ticker: c.Ticker, EarningsDate: c.EarningsDate,
		ImpliedMovePct: impliedMovePct, ATMIV: atmIV, Source: source,
	}
	if err := o.historical.LogIVObservation(ctx, obs); err != nil {
		o.log.Warn().Err(err).Str("ticker", c.Ticker).Msg("failed to journal iv observation")
	}
}

// EvaluateBatch runs EvaluateVRP over candidates with bounded
// concurrency, isolating per-ticker failures: an erroring candidate is
// left out of evals and its ticker is added to failedTickers rather than
// aborting the batch.
func (o *Orchestrator) EvaluateBatch(ctx context.Context, candidates []Candidate) (evals []VRPEvaluation, failedTickers []string) {
	type outcome struct {
		eval VRPEvaluation
		err  error
	}

	p := newPool(o.cfg.WorkerCount)
	outcomes := run(p, candidates, func(c Candidate) outcome {
		eval, err := o.EvaluateVRP(ctx, c)
		return outcome{eval: eval, err: err}
	})

	for i, oc := range outcomes {
		if oc.err != nil {
			o.log.Error().Err(oc.err).Str("ticker", candidates[i].Ticker).Msg("vrp evaluation failed")
			failedTickers = append(failedTickers, candidates[i].Ticker)
			continue
		}
		evals = append(evals, oc.eval)
	}
	return evals, failedTickers
}

// EnrichSentiment runs the hot-cache / budget / paid-vendor / web-search
// fallback chain for a single candidate, independent of a full digest
// run. Used by the sentiment-scan job to warm the cache ahead of
// evaluation.
func (o *Orchestrator) EnrichSentiment(ctx context.Context, c Candidate) *sentiment.Record {
	return o.enrichSentiment(ctx, c)
}

// enrichSentiment runs the hot-cache / budget / paid-vendor / web-search
// fallback chain for one candidate. A nil return means no sentiment
// could be obtained; the direction/size engines treat that as neutral.
func (o *Orchestrator) enrichSentiment(ctx context.Context, c Candidate) *sentiment.Record {
	if rec, ok, err := o.sentiment.HotGet(ctx, c.Ticker, c.EarningsDate); err == nil && ok {
		return &rec
	}

	if o.sentimentVendor != nil {
		check := o.budget.CanCall(ctx)
		if check.Status != budget.Exhausted {
			if err := o.sentimentLimiter.Acquire(ctx, 1, false); err == nil {
				var raw string
				callErr := o.sentimentBreaker.Call(ctx, func(ctx context.Context) error {
					out, err := o.sentimentVendor.Complete(ctx, []vendors.ChatMessage{
						{Role: "user", Content: fmt.Sprintf("Assess pre-earnings sentiment for %s.", c.Ticker)},
					})
					raw = out
					return err
				})
				if callErr == nil {
					parsed := vendors.ParseSentimentResponse(raw)
					rec := sentiment.Record{
						Ticker:       c.Ticker,
						EarningsDate: c.EarningsDate,
						Source:       sentiment.SourcePaidAI,
						Text:         raw,
						Score:        parsed.Score,
						Direction:    parsed.Direction,
					}
					if err := o.sentiment.RecordSentiment(ctx, rec); err != nil {
						o.log.Warn().Err(err).Str("ticker", c.Ticker).Msg("failed to persist sentiment")
					}
					if err := o.budget.RecordCall(ctx, decimal.NewFromFloat(o.cfg.PaidSentimentCost)); err != nil {
						o.log.Warn().Err(err).Msg("failed to record budget call")
					}
					return &rec
				}
				o.log.Warn().Err(callErr).Str("ticker", c.Ticker).Msg("paid sentiment vendor unavailable")
			}
		}
	}

	if o.webSearchVendor != nil {
		text, err := o.webSearchVendor.Search(ctx, c.Ticker)
		if err == nil {
			parsed := vendors.ParseSentimentResponse(text)
			rec := sentiment.Record{
				Ticker: c.Ticker, EarningsDate: c.EarningsDate,
				Source: sentiment.SourceWebSearch, Text: text,
				Score: parsed.Score, Direction: parsed.Direction,
			}
			if err := o.sentiment.RecordSentiment(ctx, rec); err != nil {
				o.log.Warn().Err(err).Str("ticker", c.Ticker).Msg("failed to persist fallback sentiment")
			}
			return &rec
		}
	}

	return nil
}

// BuildDigest runs steps 2-6: VRP-floor filter, top-K sentiment
// enrichment, scoring, sorting, and truncation. evals is the output of
// EvaluateBatch.
func (o *Orchestrator) BuildDigest(ctx context.Context, evals []VRPEvaluation) []DigestEntry {
	filtered := make([]VRPEvaluation, 0, len(evals))
	for _, e := range evals {
		if e.VRP.Tier == vrp.Skip {
			continue
		}
		if e.VRP.Ratio < o.cfg.VRPRatioFloor {
			continue
		}
		filtered = append(filtered, e)
	}

	// Enrichment is restricted to the top-K VRP-floor survivors, K being
	// the remaining paid-call budget capped by MaxDigestSize: there is no
	// point spending the paid vendor on a candidate that can't make the
	// final digest anyway. Candidates are ranked by VRP ratio, the only
	// signal available before scoring, to pick that K.
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].VRP.Ratio > filtered[j].VRP.Ratio
	})

	k := o.cfg.MaxDigestSize
	if remaining, err := o.budget.RemainingCalls(ctx); err == nil && remaining < k {
		k = remaining
	}

	entries := make([]DigestEntry, 0, len(filtered))
	for i, e := range filtered {
		consistency, ok, err := o.historical.Consistency(ctx, e.Candidate.Ticker, o.cfg.MinHistoricalMoves)
		if err != nil || !ok {
			consistency = 0.5
		}

		var sentimentRec *sentiment.Record
		if i < k {
			sentimentRec = o.enrichSentiment(ctx, e.Candidate)
		}
		sentimentScore := 0.0
		if sentimentRec != nil {
			sentimentScore = sentimentRec.Score
		}

		skew := e.SkewBias

		score := scoring.Compute(scoring.Input{
			VRPRatio:       e.VRP.Ratio,
			Consistency:    consistency,
			LiquidityScore: scoring.LiquidityScore(e.LiquidityTier),
			SkewBiasValue:  skew.SignedValue(),
		}, o.cfg.Weights, o.cfg.TradeableThreshold)

		direction := scoring.AdjustDirection(skew, sentimentScore)
		sizeModifier := scoring.SizeModifier(sentimentScore)

		entries = append(entries, DigestEntry{
			Candidate:    e.Candidate,
			VRP:          e.VRP,
			Consistency:  consistency,
			Liquidity:    e.LiquidityTier,
			SkewBias:     skew,
			Sentiment:    sentimentRec,
			Score:        score,
			Direction:    direction,
			SizeModifier: sizeModifier,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score.Composite != entries[j].Score.Composite {
			return entries[i].Score.Composite > entries[j].Score.Composite
		}
		if entries[i].Candidate.EarningsDate != entries[j].Candidate.EarningsDate {
			return entries[i].Candidate.EarningsDate < entries[j].Candidate.EarningsDate
		}
		return entries[i].Candidate.Ticker < entries[j].Candidate.Ticker
	})

	if len(entries) > o.cfg.MaxDigestSize {
		entries = entries[:o.cfg.MaxDigestSize]
	}
	return entries
}

// Run executes the full six-step pipeline for a batch of candidates.
func (o *Orchestrator) Run(ctx context.Context, candidates []Candidate) ([]DigestEntry, []string) {
	defer utils.OperationTimer("pipeline.Run", o.log)()

	evals, failedTickers := o.EvaluateBatch(ctx, candidates)
	return o.BuildDigest(ctx, evals), failedTickers
}
