package reco

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// renderContext feeds the markdown template.
type renderContext struct {
	SchemaVersion string
	GeneratedAt   string
	Anchor        BundleAnchor
	Window        BundleWindow
	Slug          string
	BundlePath    string
	BundleSHA256  string
	MaxExcerpts   int
	MaxChars      int
	Generator     BundleGenerator
	SnapshotID    string
	MessageIDs    string
	Confidence    string
	Band          string
	SignalDate    string
	Excerpts      []string
}

var markdownTmpl = template.Must(template.New("recommendation").Parse(`---
schema: eva-finance-recommendation
schema_version: {{.SchemaVersion}}
generated_at: {{.GeneratedAt}}

anchor:
  signal_event_id: {{.Anchor.SignalEventID}}
  event_type: "{{.Anchor.EventType}}"
  event_time: "{{.Anchor.EventTime}}"

entity:
  name: "{{.Anchor.Entity.Name}}"
  ticker: "{{.Anchor.Entity.Ticker}}"
  tag: "{{.Anchor.Entity.Tag}}"
  slug: "{{.Slug}}"

source_window:
  start: "{{.Window.Start}}"
  end: "{{.Window.End}}"

evidence:
  bundle_path: "{{.BundlePath}}"
  bundle_sha256: "{{.BundleSHA256}}"
  excerpt_policy:
    max_excerpts: {{.MaxExcerpts}}
    max_chars_each: {{.MaxChars}}
    sanitize_usernames: true
    sanitize_urls: true

reproducibility:
  generator:
    component: "{{.Generator.Component}}"
    version: "{{.Generator.Version}}"
  db_snapshot:
    confidence_snapshot_id: {{.SnapshotID}}
    message_ids_used: [{{.MessageIDs}}]
---

# EVA-Finance Recommendation

---

## 1. Executive Assessment (Read This First)

**Recommendation:** Candidate for upward trajectory
**Confidence Level:** {{.Confidence}}
**Signal Band:** {{.Band}}
**Signal Initiation Date:** {{.SignalDate}}

**Summary (AUTO Draft):**
- [AUTO] EVA detected a threshold crossing for **{{.Anchor.Entity.Name}}**.
- [AUTO] Evidence bundle archived for post-mortem integrity (see front matter).
- [AUTO] This is not advice; it's a pattern snapshot.

---

## 2. Why This Company (HUMAN)

**Core Thesis (Plain Language):**
[Write your thesis here.]

---

## 3. Why Now (Timing Justification)

**Interpretation (AUTO Draft):**
- [AUTO] Reference snapshot deltas + spread + intent progression.
- [AUTO] If you can't write this clearly, the recommendation shouldn't exist.

---

## 4. Signal Evidence

### Evidence Excerpts (AUTO, sanitized)
{{range .Excerpts}}{{.}}
{{else}}- (No evidence items selected)
{{end}}
---

## 5. Risks & Disconfirming Signals

**Known Risks (HUMAN):**
- [Add risks here.]

**Signals That Would Weaken This Recommendation (AUTO):**
- Intent regression (action language fading back to chatter)
- Volume spike without sentiment stabilization
- Single-community concentration

---

## 6. Confidence Interpretation

**Confidence Score:** {{.Confidence}}

This score reflects confidence that the pattern is materially different
from noise, not certainty of outcome.

---

## 7. Post-Recommendation Tracking

**Review Windows:**
- 30 days
- 90 days
`))

// RenderMarkdown produces the recommendation draft document.
func RenderMarkdown(bundle Bundle, bundlePath, bundleSHA string, maxExcerpts, maxChars int) (string, error) {
	ctx := renderContext{
		SchemaVersion: BundleSchemaVersion,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		Anchor:        bundle.Anchor,
		Window:        bundle.SourceWindow,
		Slug:          slugify(bundle.Anchor.Entity.Name),
		BundlePath:    bundlePath,
		BundleSHA256:  bundleSHA,
		MaxExcerpts:   maxExcerpts,
		MaxChars:      maxChars,
		Generator:     bundle.Generator,
		SnapshotID:    "null",
		Confidence:    "UNKNOWN",
		Band:          "UNKNOWN",
	}
	if len(bundle.Anchor.EventTime) >= 10 {
		ctx.SignalDate = bundle.Anchor.EventTime[:10]
	}
	if bundle.Snapshot != nil {
		ctx.SnapshotID = fmt.Sprintf("%d", bundle.Snapshot.ID)
		ctx.Confidence = fmt.Sprintf("%.4f", bundle.Snapshot.FinalConfidence)
		ctx.Band = bundle.Snapshot.Band
	}

	ids := make([]string, 0, len(bundle.EvidenceItems))
	for _, item := range bundle.EvidenceItems {
		ids = append(ids, fmt.Sprintf("%d", item.ProcessedMessageID))
	}
	ctx.MessageIDs = strings.Join(ids, ", ")

	for i, item := range bundle.EvidenceItems {
		if i >= maxExcerpts {
			break
		}
		community := item.Source.Community
		if community == "" {
			community = "unknown"
		}
		safe := clip(Sanitize(item.Raw.Text), maxChars)
		ctx.Excerpts = append(ctx.Excerpts, fmt.Sprintf(
			"- `#%d | r/%s | %s`\n  > %s\n  *Intent:* %s | *Sentiment:* %s\n",
			item.ProcessedMessageID, community, item.CreatedAt,
			safe, item.Processed.Intent, item.Processed.Sentiment))
	}

	var sb strings.Builder
	if err := markdownTmpl.Execute(&sb, ctx); err != nil {
		return "", err
	}
	return sb.String(), nil
}
