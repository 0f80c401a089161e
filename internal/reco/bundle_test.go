package reco

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/errs"
)

func sampleBundle() Bundle {
	return Bundle{
		Schema:        BundleSchema,
		SchemaVersion: BundleSchemaVersion,
		Anchor: BundleAnchor{
			SignalEventID: 42,
			EventType:     "RECOMMENDATION_ELIGIBLE",
			EventTime:     "2026-08-20T06:30:00Z",
			Entity:        BundleEntity{Name: "Hoka", Tag: "comfort-shoes"},
		},
		SourceWindow: BundleWindow{
			Start: "2026-08-13T00:00:00Z",
			End:   "2026-08-21T00:00:00Z",
		},
		Snapshot: &SnapshotRecord{
			ID:              7,
			Day:             "2026-08-20",
			Tag:             "comfort-shoes",
			FinalConfidence: 0.6712,
			Band:            "HIGH",
			ScoringVersion:  "v1",
		},
		EvidenceItems: []EvidenceItem{
			{
				ProcessedMessageID: 11,
				RawMessageID:       101,
				CreatedAt:          "2026-08-19T18:00:00Z",
				Source:             EvidenceSource{Platform: "reddit", Community: "running"},
				Raw:                EvidenceText{Text: "switched to hoka, see https://example.com"},
				Sanitized:          EvidenceText{Text: "switched to hoka, see [link removed]"},
				Processed:          EvidenceMeta{Sentiment: "positive", Intent: "own"},
			},
		},
		Generator: BundleGenerator{Component: "evacore", Version: "v1.0.0"},
	}
}

func TestWriteBundleAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoka", "42_evidence.json.gz")

	sha, err := WriteBundle(path, sampleBundle())
	require.NoError(t, err)
	require.Len(t, sha, 64)

	got, err := VerifyBundle(path)
	require.NoError(t, err)
	assert.Equal(t, sha, got)
}

func TestWriteBundleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42_evidence.json.gz")

	_, err := WriteBundle(path, sampleBundle())
	require.NoError(t, err)

	_, err = WriteBundle(path, sampleBundle())
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}

func TestWriteBundleDigestIsStable(t *testing.T) {
	dir := t.TempDir()

	shaA, err := WriteBundle(filepath.Join(dir, "a.json.gz"), sampleBundle())
	require.NoError(t, err)
	shaB, err := WriteBundle(filepath.Join(dir, "b.json.gz"), sampleBundle())
	require.NoError(t, err)

	assert.Equal(t, shaA, shaB)
}

func TestWriteBundleDigestChangesWithContent(t *testing.T) {
	dir := t.TempDir()

	shaA, err := WriteBundle(filepath.Join(dir, "a.json.gz"), sampleBundle())
	require.NoError(t, err)

	b := sampleBundle()
	b.Anchor.SignalEventID = 43
	shaB, err := WriteBundle(filepath.Join(dir, "b.json.gz"), b)
	require.NoError(t, err)

	assert.NotEqual(t, shaA, shaB)
}

func TestMarshalSortedIsDeterministic(t *testing.T) {
	a, err := marshalSorted(sampleBundle())
	require.NoError(t, err)
	b, err := marshalSorted(sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderMarkdownContainsEvidence(t *testing.T) {
	bundle := sampleBundle()
	md, err := RenderMarkdown(bundle, "output/hoka/42_evidence.json.gz", "deadbeef", 15, 400)
	require.NoError(t, err)

	assert.Contains(t, md, "schema: eva-finance-recommendation")
	assert.Contains(t, md, "Hoka")
	assert.Contains(t, md, "comfort-shoes")
	assert.Contains(t, md, "[link removed]")
	assert.NotContains(t, md, "https://example.com")
	assert.Contains(t, md, "deadbeef")
	assert.Contains(t, md, "HUMAN")
}
