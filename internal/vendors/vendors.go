// Package vendors declares the collaborator interfaces the core calls
// through: the earnings calendar vendor, the options data vendor, the
// paid AI sentiment vendor, and the downstream sink. Only the
// interfaces and parsing contracts live here — concrete HTTP wire
// formats belong to the collaborator implementations.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aristath/vrp-sentinel/internal/liquidity"
	"github.com/aristath/vrp-sentinel/internal/scoring"
)

// ErrKind tags the flavor of a vendor-facing error so callers can apply
// the §7 propagation policy without string-matching error text.
type ErrKind int

const (
	KindTimeout ErrKind = iota
	KindRateLimit
	KindNoData
	KindExternal
	KindValidation
)

func (k ErrKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "ratelimit"
	case KindNoData:
		return "nodata"
	case KindExternal:
		return "external"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its ErrKind classification.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified vendor Error.
func NewError(kind ErrKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err (or something it wraps) is a vendors.Error
// of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind == kind
	}
	return false
}

// EarningsEvent is one row from the earnings calendar collaborator.
type EarningsEvent struct {
	Symbol     string
	ReportDate string // ISO date, YYYY-MM-DD
	Estimate   *float64
}

// Horizon is the calendar lookup window.
type Horizon string

const (
	Horizon3Month  Horizon = "3month"
	Horizon6Month  Horizon = "6month"
	Horizon12Month Horizon = "12month"
)

// EarningsCalendar is the earnings calendar vendor collaborator.
type EarningsCalendar interface {
	GetEarningsCalendar(ctx context.Context, horizon Horizon) ([]EarningsEvent, error)
}

// OptionQuote is one leg's quote, reused by liquidity.Quote callers.
type OptionQuote struct {
	Strike       float64
	Bid, Ask     float64
	OpenInterest int
	Volume       int
	ImpliedVol   float64
}

func (q OptionQuote) ToLiquidityQuote() liquidity.Quote {
	return liquidity.Quote{OpenInterest: q.OpenInterest, Volume: q.Volume, Bid: q.Bid, Ask: q.Ask}
}

// OptionChain is a simplified per-expiration option chain: the ATM call
// and put legs needed to approximate the implied move via a straddle.
type OptionChain struct {
	Ticker     string
	Expiration string
	ATMStrike  float64
	ATMCall    OptionQuote
	ATMPut     OptionQuote
	ATMIV      float64 // 0 when the vendor does not report a standalone IV figure
	SkewBias   scoring.SkewBias
}

// ImpliedMoveFromStraddle approximates the market-implied earnings move
// as the ATM straddle's mid-price expressed as a percentage of the ATM
// strike. Legs with no quoted bid/ask contribute a zero mid rather than
// failing the whole calculation; callers should already have rejected
// such chains via the liquidity engine before pricing them.
func ImpliedMoveFromStraddle(chain OptionChain) float64 {
	if chain.ATMStrike <= 0 {
		return 0
	}
	callMid := (chain.ATMCall.Bid + chain.ATMCall.Ask) / 2
	putMid := (chain.ATMPut.Bid + chain.ATMPut.Ask) / 2
	return (callMid + putMid) / chain.ATMStrike * 100
}

// OptionsData is the options data vendor collaborator.
type OptionsData interface {
	GetOptionChain(ctx context.Context, ticker, expiration string) (OptionChain, error)
	GetStockPrice(ctx context.Context, ticker string) (float64, error)
	GetExpirations(ctx context.Context, ticker string) ([]string, error)
	// GetStockPricesBatch fetches up to 100 symbols per call; callers
	// must chunk larger requests themselves.
	GetStockPricesBatch(ctx context.Context, tickers []string) (map[string]float64, error)
}

// MaxBatchSymbols is the options vendor's hard per-call symbol limit.
const MaxBatchSymbols = 100

// MaxResponseBytes caps a single vendor response to prevent OOM.
const MaxResponseBytes = 8 * 1024 * 1024

// SentimentVendorResponse is the fully-populated, defaulted record
// parsed from the paid AI vendor's free-text reply.
type SentimentVendorResponse struct {
	Direction scoring.Direction
	Score     float64
	Catalysts string
	Risks     string
}

var (
	directionRe = regexp.MustCompile(`(?i)Direction:\s*(bullish|bearish|neutral)`)
	scoreRe     = regexp.MustCompile(`Score:\s*([+-]?\d*\.?\d+)`)
	catalystsRe = regexp.MustCompile(`(?i)Catalysts:\s*(.*)`)
	risksRe     = regexp.MustCompile(`(?i)Risks:\s*(.*)`)
)

// ParseSentimentResponse applies the loose regex contract from §6. All
// fields are optional; a missing field defaults to
// {neutral, 0.0, "", ""}. Never raises from parsing.
func ParseSentimentResponse(text string) SentimentVendorResponse {
	resp := SentimentVendorResponse{Direction: scoring.Neutral}

	if m := directionRe.FindStringSubmatch(text); len(m) == 2 {
		resp.Direction = scoring.ParseDirection(strings.ToLower(m[1]))
	}

	if m := scoreRe.FindStringSubmatch(text); len(m) == 2 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			resp.Score = v
		}
	}

	if m := catalystsRe.FindStringSubmatch(text); len(m) == 2 {
		resp.Catalysts = strings.TrimSpace(m[1])
	}

	if m := risksRe.FindStringSubmatch(text); len(m) == 2 {
		resp.Risks = strings.TrimSpace(m[1])
	}

	return resp
}

// ChatMessage is one turn of the chat-style request sent to the paid AI
// sentiment vendor.
type ChatMessage struct {
	Role    string
	Content string
}

// SentimentVendor is the paid AI sentiment vendor collaborator.
type SentimentVendor interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// WebSearchVendor is the fallback sentiment source consulted when the
// budget is exhausted and a web-search collaborator is configured.
type WebSearchVendor interface {
	Search(ctx context.Context, ticker string) (string, error)
}

// DownstreamSink is the Telegram/webhook collaborator that receives the
// formatted digest.
type DownstreamSink interface {
	SendMessage(ctx context.Context, body string, parseMode string) error
}

// MaxMessageLength is the downstream sink's hard body-length limit.
const MaxMessageLength = 4096

// TruncateMessage truncates body to maxLen, appending an ellipsis
// marker when truncation occurs.
func TruncateMessage(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	if maxLen <= 3 {
		return body[:maxLen]
	}
	return body[:maxLen-3] + "..."
}
