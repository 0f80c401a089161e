// Package metrics registers the pipeline's prometheus collectors.
// Every long-lived stage counts its work here; the admission server
// exposes the registry on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsIngested counts raw posts accepted by the admission endpoint.
	PostsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_posts_ingested_total",
		Help: "Raw posts accepted by the admission endpoint",
	})

	// PostsDuplicate counts deduped deliveries. Duplicates are expected,
	// not errors.
	PostsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_posts_duplicate_total",
		Help: "Raw post deliveries deduped on (source, platform_id)",
	})

	// PostsRejected counts envelopes failing validation.
	PostsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_posts_rejected_total",
		Help: "Envelopes rejected by admission validation",
	})

	// Extractions counts processed posts by extraction path.
	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_extractions_total",
		Help: "Processed posts by extraction path",
	}, []string{"path"})

	// ScoresComputed counts scoring results by band.
	ScoresComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_scores_computed_total",
		Help: "Confidence scores computed by band",
	}, []string{"band"})

	// EventsEmitted counts new signal events by kind.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_signal_events_total",
		Help: "Signal events emitted by kind",
	}, []string{"kind"})

	// TrendsLookups counts validator outcomes: completed, pending,
	// cache_hit.
	TrendsLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_trends_lookups_total",
		Help: "External-search validator lookups by outcome",
	}, []string{"outcome"})

	// Notifications counts delivery outcomes: sent, failed.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_notifications_total",
		Help: "Push deliveries by outcome",
	}, []string{"outcome"})

	// OpenPositions tracks the current number of open paper positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eva_paper_positions_open",
		Help: "Open paper positions",
	})

	// ScoreDuration observes full scoring run latency.
	ScoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eva_score_run_seconds",
		Help:    "Confidence scoring run duration",
		Buckets: prometheus.DefBuckets,
	})
)
