package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/models"
)

const systemPrompt = `You are a conversational data analyzer for consumer-brand signals.

Extract structured information from ONE short post/comment.

Return ONLY valid JSON with ALL keys present:

{
  "brand": [...],
  "sentiment": "strong_positive|positive|neutral|negative|strong_negative",
  "intent": "buy|own|recommendation|complaint|none",
  "tickers": [...],
  "tags": [...]
}

Rules:
- brand: include ALL brands explicitly mentioned.
- sentiment: do NOT use "neutral" if the text clearly expresses preference, excitement, hate, or switching.
- intent: choose "own" if the user describes their usage or switching; "recommendation" only if they advise others.
- tags: 2-5 behavior tags when there is signal; include "brand-switch" for switching text, "running" for running context, "comfort" when comfort is mentioned.
Output JSON only. No markdown. No extra fields.`

// llmPayload is the schema the model is asked to return.
type llmPayload struct {
	Brand     []string `json:"brand"`
	Sentiment string   `json:"sentiment"`
	Intent    string   `json:"intent"`
	Tickers   []string `json:"tickers"`
	Tags      []string `json:"tags"`
}

// LLMExtractor is the model-backed primary extraction path. Calls run
// behind a circuit breaker; any failure (timeout, open breaker, junk
// output) is surfaced so the strategy can fall back.
type LLMExtractor struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	tokens  int64
	breaker *gobreaker.CircuitBreaker
	version string
}

// NewLLMExtractor builds the primary path from config. Returns nil when
// no API key is configured, which disables the primary path entirely.
func NewLLMExtractor(cfg config.LLMConfig) *LLMExtractor {
	if cfg.APIKey == "" {
		return nil
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-extract",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &LLMExtractor{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		tokens:  int64(cfg.MaxTokens),
		breaker: breaker,
		version: fmt.Sprintf("llm:%s:v1", cfg.Model),
	}
}

// Version implements Extractor.
func (l *LLMExtractor) Version() string { return l.version }

// Extract implements Extractor. A non-empty response with at least one
// parseable field counts as success.
func (l *LLMExtractor) Extract(ctx context.Context, text string) (Result, error) {
	raw, err := l.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return l.complete(callCtx, text)
	})
	if err != nil {
		return Result{}, errs.Transient("extract.llm", err)
	}

	payload, err := parsePayload(raw.(string))
	if err != nil {
		return Result{}, errs.Permanent("extract.llm_parse", err)
	}

	res := emptyResult(l.version)
	res.Brands = dedupe(payload.Brand)
	res.Tags = dedupe(payload.Tags)
	res.Tickers = dedupe(payload.Tickers)
	if s := models.Sentiment(payload.Sentiment); s.Valid() {
		res.Sentiment = s
	}
	if i := models.Intent(payload.Intent); i.Valid() {
		res.Intent = i
	}

	// The heuristic contract layer runs on top of model output too, so
	// the multi-brand comparative rule holds regardless of path.
	res = enforceContract(strings.ToLower(text), res)
	// Model output may carry both comfort tags; keep the specific one.
	if contains(res.Tags, "comfort") && contains(res.Tags, "comfort-shoes") {
		res.Tags = remove(res.Tags, "comfort")
	}
	return res, nil
}

func (l *LLMExtractor) complete(ctx context.Context, text string) (string, error) {
	resp, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: l.tokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Text:\n%s\n\nReturn JSON only.", text))),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return sb.String(), nil
}

// parsePayload decodes model output, repairing malformed JSON first.
// Models wrap JSON in prose or fences often enough that repair is the
// default, not the exception.
func parsePayload(raw string) (llmPayload, error) {
	repaired, err := jsonrepair.RepairJSON(raw)
	if err != nil {
		return llmPayload{}, fmt.Errorf("repair model json: %w", err)
	}
	var p llmPayload
	if err := json.Unmarshal([]byte(repaired), &p); err != nil {
		return llmPayload{}, fmt.Errorf("decode model json: %w", err)
	}
	if len(p.Brand) == 0 && len(p.Tags) == 0 && p.Sentiment == "" && p.Intent == "" {
		return llmPayload{}, fmt.Errorf("model response carried no parseable field")
	}
	return p, nil
}

func dedupe(in []string) []string {
	out := []string{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = ensure(out, v)
	}
	return out
}
