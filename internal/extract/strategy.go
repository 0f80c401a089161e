package extract

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Strategy chains the primary extractor with the deterministic fallback.
// Extraction as a whole never fails: when the primary errors or is not
// configured, the fallback result is used instead.
type Strategy struct {
	primary  Extractor
	fallback Extractor
}

// NewStrategy builds the two-path strategy. primary may be nil.
func NewStrategy(primary Extractor, fallback Extractor) *Strategy {
	return &Strategy{primary: primary, fallback: fallback}
}

// Extract runs the primary path first and falls back on any error. The
// returned path is "llm" or "fallback" for accounting.
func (s *Strategy) Extract(ctx context.Context, text string) (Result, string) {
	if s.primary != nil {
		res, err := s.primary.Extract(ctx, text)
		if err == nil {
			return res, "llm"
		}
		log.Debug().Err(err).Msg("primary extraction failed, using fallback")
	}
	res, _ := s.fallback.Extract(ctx, text)
	return res, "fallback"
}
