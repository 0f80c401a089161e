// Package models defines the persisted entities of the EVA signal core.
// Types are shared between the store, the pipeline stages, and the HTTP
// surface; persistence-specific concerns stay in the db tags.
package models

import (
	"time"

	"github.com/lib/pq"
)

// Sentiment is the closed sentiment enum produced by extraction.
type Sentiment string

const (
	SentimentStrongPositive Sentiment = "strong_positive"
	SentimentPositive       Sentiment = "positive"
	SentimentNeutral        Sentiment = "neutral"
	SentimentNegative       Sentiment = "negative"
	SentimentStrongNegative Sentiment = "strong_negative"
)

// Valid reports whether s is one of the known sentiment values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentStrongPositive, SentimentPositive, SentimentNeutral,
		SentimentNegative, SentimentStrongNegative:
		return true
	}
	return false
}

// Intent is the closed intent enum produced by extraction.
type Intent string

const (
	IntentBuy            Intent = "buy"
	IntentOwn            Intent = "own"
	IntentRecommendation Intent = "recommendation"
	IntentComplaint      Intent = "complaint"
	IntentNone           Intent = "none"
)

// Valid reports whether i is one of the known intent values.
func (i Intent) Valid() bool {
	switch i {
	case IntentBuy, IntentOwn, IntentRecommendation, IntentComplaint, IntentNone:
		return true
	}
	return false
}

// ActionOriented reports whether the intent counts toward the action rate
// (buy/own/recommendation, as opposed to evaluative chatter).
func (i Intent) ActionOriented() bool {
	return i == IntentBuy || i == IntentOwn || i == IntentRecommendation
}

// EventKind identifies a signal event emission.
type EventKind string

const (
	EventTagElevated           EventKind = "TAG_ELEVATED"
	EventBrandDivergence       EventKind = "BRAND_DIVERGENCE"
	EventWatchlistWarm         EventKind = "WATCHLIST_WARM"
	EventRecommendationEligible EventKind = "RECOMMENDATION_ELIGIBLE"
)

// Severity grades a signal event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Band is the classification output of the confidence scorer.
type Band string

const (
	BandHigh       Band = "HIGH"
	BandWatchlist  Band = "WATCHLIST"
	BandSuppressed Band = "SUPPRESSED"
)

// BehaviorStateValue is the tag-level state machine value.
type BehaviorStateValue string

const (
	StateNormal   BehaviorStateValue = "NORMAL"
	StateElevated BehaviorStateValue = "ELEVATED"
)

// TrendDirection classifies the external search-interest trajectory.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendStable  TrendDirection = "stable"
	TrendFalling TrendDirection = "falling"
	TrendUnknown TrendDirection = "unknown"
)

// ValidationStatus marks whether an external validation completed or was
// abandoned due to a transient upstream condition. Pending validations must
// never influence a confidence score.
type ValidationStatus string

const (
	ValidationCompleted ValidationStatus = "completed"
	ValidationPending   ValidationStatus = "pending"
)

// ExitReason records why a paper position was closed.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTimeExit     ExitReason = "time_exit"
	ExitManual       ExitReason = "manual"
)

// RawPost is one ingested post, immutable after insert.
// (source, platform_id) is unique.
type RawPost struct {
	ID         int64      `db:"id" json:"id"`
	Source     string     `db:"source" json:"source"`
	PlatformID string     `db:"platform_id" json:"platform_id"`
	Timestamp  time.Time  `db:"ts" json:"timestamp"`
	Text       string     `db:"text" json:"text"`
	URL        *string    `db:"url" json:"url,omitempty"`
	Meta       JSONMap    `db:"meta" json:"meta"`
	Processed  bool       `db:"processed" json:"processed"`
	ClaimedAt  *time.Time `db:"claimed_at" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ProcessedPost is the structured view derived from one RawPost.
// At most one row exists per raw id.
type ProcessedPost struct {
	ID               int64          `db:"id" json:"id"`
	RawID            int64          `db:"raw_id" json:"raw_id"`
	Brands           pq.StringArray `db:"brands" json:"brands"`
	Tags             pq.StringArray `db:"tags" json:"tags"`
	Sentiment        Sentiment      `db:"sentiment" json:"sentiment"`
	Intent           Intent         `db:"intent" json:"intent"`
	Tickers          pq.StringArray `db:"tickers" json:"tickers,omitempty"`
	ProcessorVersion string         `db:"processor_version" json:"processor_version"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// BehaviorState is the per-tag state machine row.
type BehaviorState struct {
	Tag        string             `db:"tag" json:"tag"`
	State      BehaviorStateValue `db:"state" json:"state"`
	Confidence float64            `db:"confidence" json:"confidence"`
	FirstSeen  time.Time          `db:"first_seen" json:"first_seen"`
	LastSeen   time.Time          `db:"last_seen" json:"last_seen"`
}

// SignalEvent is an append-only emission, deduped on
// (kind, tag-or-empty, brand-or-empty, day).
type SignalEvent struct {
	ID           int64     `db:"id" json:"id"`
	Kind         EventKind `db:"event_type" json:"event_type"`
	Tag          *string   `db:"tag" json:"tag,omitempty"`
	Brand        *string   `db:"brand" json:"brand,omitempty"`
	Day          time.Time `db:"day" json:"day"`
	Severity     Severity  `db:"severity" json:"severity"`
	Payload      JSONMap   `db:"payload" json:"payload"`
	Acknowledged bool      `db:"acknowledged" json:"acknowledged"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ConfidenceScore is one scoring result per (day, brand, tag, version).
type ConfidenceScore struct {
	ID             int64     `db:"id" json:"id"`
	Day            time.Time `db:"day" json:"day"`
	Tag            string    `db:"tag" json:"tag"`
	Brand          string    `db:"brand" json:"brand"`
	Acceleration   float64   `db:"acceleration_score" json:"acceleration_score"`
	Intent         float64   `db:"intent_score" json:"intent_score"`
	Spread         float64   `db:"spread_score" json:"spread_score"`
	Baseline       float64   `db:"baseline_score" json:"baseline_score"`
	Suppression    float64   `db:"suppression_score" json:"suppression_score"`
	Final          float64   `db:"final_confidence" json:"final_confidence"`
	Band           Band      `db:"band" json:"band"`
	GateFailReason *string   `db:"gate_failed_reason" json:"gate_failed_reason,omitempty"`
	ScoringVersion string    `db:"scoring_version" json:"scoring_version"`
	Details        JSONMap   `db:"details" json:"details"`
	ComputedAt     time.Time `db:"computed_at" json:"computed_at"`
}

// RecommendationDraft is the human-gate record, one per eligible event.
type RecommendationDraft struct {
	ID              int64      `db:"id" json:"id"`
	SignalEventID   int64      `db:"signal_event_id" json:"signal_event_id"`
	Brand           string     `db:"brand" json:"brand"`
	Tag             string     `db:"tag" json:"tag"`
	EventTime       time.Time  `db:"event_time" json:"event_time"`
	FinalConfidence float64    `db:"final_confidence" json:"final_confidence"`
	Band            Band       `db:"band" json:"band"`
	BundlePath      string     `db:"bundle_path" json:"bundle_path"`
	BundleSHA256    string     `db:"bundle_sha256" json:"bundle_sha256"`
	MarkdownPath    string     `db:"markdown_path" json:"markdown_path"`
	Approved        bool       `db:"approved" json:"approved"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	NotifiedAt      *time.Time `db:"notified_at" json:"notified_at,omitempty"`
	Attempts        int        `db:"notify_attempts" json:"notify_attempts"`
	LastError       *string    `db:"last_notify_error" json:"last_notify_error,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// BrandTickerMap resolves a brand to a tradable ticker.
// Brand lookups are case-insensitive.
type BrandTickerMap struct {
	Brand         string    `db:"brand" json:"brand"`
	Ticker        *string   `db:"ticker" json:"ticker,omitempty"`
	ParentCompany *string   `db:"parent_company" json:"parent_company,omitempty"`
	Material      bool      `db:"material" json:"material"`
	Exchange      *string   `db:"exchange" json:"exchange,omitempty"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PaperPosition simulates a $1,000 position per approved eligible signal.
type PaperPosition struct {
	ID            int64       `db:"id" json:"id"`
	SignalEventID int64       `db:"signal_event_id" json:"signal_event_id"`
	Brand         string      `db:"brand" json:"brand"`
	Tag           string      `db:"tag" json:"tag"`
	Ticker        string      `db:"ticker" json:"ticker"`
	EntryDate     time.Time   `db:"entry_date" json:"entry_date"`
	EntryPrice    float64     `db:"entry_price" json:"entry_price"`
	CurrentPrice  *float64    `db:"current_price" json:"current_price,omitempty"`
	PositionSize  float64     `db:"position_size" json:"position_size"`
	Status        string      `db:"status" json:"status"`
	ExitDate      *time.Time  `db:"exit_date" json:"exit_date,omitempty"`
	ExitPrice     *float64    `db:"exit_price" json:"exit_price,omitempty"`
	ExitReason    *ExitReason `db:"exit_reason" json:"exit_reason,omitempty"`
	ReturnPct     *float64    `db:"return_pct" json:"return_pct,omitempty"`
	ReturnDollar  *float64    `db:"return_dollar" json:"return_dollar,omitempty"`
	DaysHeld      int         `db:"days_held" json:"days_held"`
}

// Paper position status values.
const (
	PositionOpen   = "open"
	PositionClosed = "closed"
)

// DefaultPositionSize is the fixed simulated position size in dollars.
const DefaultPositionSize = 1000.0

// TrendsValidation records one external search-interest check for a brand.
type TrendsValidation struct {
	ID              int64            `db:"id" json:"id"`
	Brand           string           `db:"brand" json:"brand"`
	CheckedAt       time.Time        `db:"checked_at" json:"checked_at"`
	SearchInterest  float64          `db:"search_interest" json:"search_interest"`
	TrendDirection  TrendDirection   `db:"trend_direction" json:"trend_direction"`
	ValidatesSignal bool             `db:"validates_signal" json:"validates_signal"`
	ConfidenceBoost float64          `db:"confidence_boost" json:"confidence_boost"`
	Status          ValidationStatus `db:"validation_status" json:"validation_status"`
	QueryTerm       string           `db:"query_term" json:"query_term"`
	ErrorMessage    *string          `db:"error_message" json:"error_message,omitempty"`
}

// CandidateSignal is one row of the candidate-signal projection: a
// (day, brand, tag) tuple eligible for scoring, with the aggregates the
// scorer consumes.
type CandidateSignal struct {
	Day              time.Time `db:"day" json:"day"`
	Tag              string    `db:"tag" json:"tag"`
	Brand            string    `db:"brand" json:"brand"`
	MsgCount         int       `db:"msg_count" json:"msg_count"`
	SourceCount      int       `db:"source_count" json:"source_count"`
	PlatformCount    int       `db:"platform_count" json:"platform_count"`
	ActionIntentRate float64   `db:"action_intent_rate" json:"action_intent_rate"`
	EvalIntentRate   float64   `db:"eval_intent_rate" json:"eval_intent_rate"`
	DeltaPct         float64   `db:"delta_pct" json:"delta_pct"`
	MemeRisk         float64   `db:"meme_risk" json:"meme_risk"`
}

// BrandDivergence is one row of the brand-divergence trigger projection:
// a brand whose share of tag-day messages moved by >=5 percentage points
// versus the previous day.
type BrandDivergence struct {
	Tag      string    `db:"tag" json:"tag"`
	Brand    string    `db:"brand" json:"brand"`
	Day      time.Time `db:"day" json:"day"`
	DeltaPct float64   `db:"delta_pct" json:"delta_pct"`
	ZScore   float64   `db:"z_score" json:"z_score"`
}
