package reco

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evafinance/evacore/internal/errs"
)

// BundleSchema identifies the evidence bundle format.
const (
	BundleSchema        = "eva-finance-evidence-bundle"
	BundleSchemaVersion = "v1.0"
)

// EvidenceItem is one canonical evidence record. Raw text is the record
// of truth; the sanitized form is for display only.
type EvidenceItem struct {
	ProcessedMessageID int64          `json:"processed_message_id"`
	RawMessageID       int64          `json:"raw_message_id"`
	CreatedAt          string         `json:"created_at"`
	Source             EvidenceSource `json:"source"`
	Raw                EvidenceText   `json:"raw"`
	Sanitized          EvidenceText   `json:"sanitized"`
	Processed          EvidenceMeta   `json:"processed"`
}

// EvidenceSource locates where one evidence item came from.
type EvidenceSource struct {
	Platform  string `json:"platform"`
	Community string `json:"community,omitempty"`
	Permalink string `json:"permalink,omitempty"`
}

// EvidenceText wraps one text rendition.
type EvidenceText struct {
	Text string `json:"text"`
}

// EvidenceMeta carries the extraction labels for one item.
type EvidenceMeta struct {
	Sentiment string `json:"sentiment"`
	Intent    string `json:"intent"`
}

// Bundle is the full evidence bundle payload.
type Bundle struct {
	Schema        string          `json:"schema"`
	SchemaVersion string          `json:"schema_version"`
	Anchor        BundleAnchor    `json:"anchor"`
	SourceWindow  BundleWindow    `json:"source_window"`
	Snapshot      *SnapshotRecord `json:"confidence_snapshot"`
	EvidenceItems []EvidenceItem  `json:"evidence_items"`
	Generator     BundleGenerator `json:"generator"`
}

// BundleAnchor names the triggering event.
type BundleAnchor struct {
	SignalEventID int64        `json:"signal_event_id"`
	EventType     string       `json:"event_type"`
	EventTime     string       `json:"event_time"`
	Entity        BundleEntity `json:"entity"`
}

// BundleEntity names the brand and any resolved ticker.
type BundleEntity struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker,omitempty"`
	Tag    string `json:"tag"`
}

// BundleWindow bounds the evidence collection period.
type BundleWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SnapshotRecord is the confidence snapshot stored inside the bundle.
type SnapshotRecord struct {
	ID              int64   `json:"id"`
	Day             string  `json:"day"`
	Tag             string  `json:"tag"`
	FinalConfidence float64 `json:"final_confidence"`
	Band            string  `json:"band"`
	ScoringVersion  string  `json:"scoring_version"`
}

// BundleGenerator identifies the producing component.
type BundleGenerator struct {
	Component string `json:"component"`
	Version   string `json:"version"`
}

// WriteBundle serializes the bundle with sorted keys, gzips it to path,
// and returns the SHA-256 of the uncompressed bytes. Bundles are
// append-only: an existing file is never overwritten.
func WriteBundle(path string, bundle Bundle) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return "", errs.Invalid("reco.write_bundle",
			fmt.Errorf("refusing to overwrite existing evidence bundle: %s", path))
	}

	raw, err := marshalSorted(bundle)
	if err != nil {
		return "", errs.Permanent("reco.write_bundle", err)
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.Permanent("reco.write_bundle", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errs.Permanent("reco.write_bundle", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	gz.ModTime = time.Unix(0, 0)
	if _, err := gz.Write(raw); err != nil {
		return "", errs.Permanent("reco.write_bundle", err)
	}
	if err := gz.Close(); err != nil {
		return "", errs.Permanent("reco.write_bundle", err)
	}
	return digest, nil
}

// VerifyBundle recomputes the digest of a stored bundle.
func VerifyBundle(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Permanent("reco.verify_bundle", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", errs.Permanent("reco.verify_bundle", err)
	}
	defer gz.Close()

	h := sha256.New()
	if _, err := io.Copy(h, gz); err != nil {
		return "", errs.Permanent("reco.verify_bundle", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// marshalSorted renders JSON with lexically sorted keys at every level,
// so the digest is stable across runs.
func marshalSorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.MarshalIndent(generic, "", "  ")
}
