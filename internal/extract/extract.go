// Package extract converts raw post text into structured entities.
// Two extractors implement the same capability: a model-backed primary
// and a deterministic heuristic fallback. The strategy tries the primary
// and falls back, so extraction never fails and the pipeline never
// blocks on a raw post.
package extract

import (
	"context"

	"github.com/evafinance/evacore/internal/models"
)

// Result is the structured output of one extraction. All fields are
// optional-empty; a fully empty result is still a valid row.
type Result struct {
	Brands           []string
	Tags             []string
	Sentiment        models.Sentiment
	Intent           models.Intent
	Tickers          []string
	ProcessorVersion string
}

// Extractor is the extraction capability: text in, structured result out.
type Extractor interface {
	Extract(ctx context.Context, text string) (Result, error)
	Version() string
}

// emptyResult returns the neutral result every extractor starts from.
func emptyResult(version string) Result {
	return Result{
		Brands:           []string{},
		Tags:             []string{},
		Sentiment:        models.SentimentNeutral,
		Intent:           models.IntentNone,
		Tickers:          []string{},
		ProcessorVersion: version,
	}
}

// ensure appends value to list if absent, preserving order.
func ensure(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func remove(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
