package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/models"
)

func TestHeuristicBrandSwitch(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"Switched from Nike to Hoka — way more comfortable for running")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Nike", "Hoka"}, res.Brands)
	assert.Contains(t, res.Tags, "brand-switch")
	assert.Contains(t, res.Tags, "comfort")
	assert.Contains(t, res.Tags, "running")
	assert.Equal(t, models.IntentOwn, res.Intent)
	assert.NotEqual(t, models.SentimentNeutral, res.Sentiment)
	assert.Equal(t, HeuristicVersion, res.ProcessorVersion)
}

func TestHeuristicEmptyTextIsNeutral(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(), "   \n\t ")
	require.NoError(t, err)

	assert.Empty(t, res.Brands)
	assert.Empty(t, res.Tags)
	assert.Equal(t, models.SentimentNeutral, res.Sentiment)
	assert.Equal(t, models.IntentNone, res.Intent)
}

func TestHeuristicNoBrandStillTags(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"these are the most comfortable shoes I own for running")
	require.NoError(t, err)

	assert.Empty(t, res.Brands)
	assert.Contains(t, res.Tags, "comfort")
	assert.Contains(t, res.Tags, "comfort-shoes")
	assert.Contains(t, res.Tags, "running")
	assert.Equal(t, models.IntentOwn, res.Intent)
}

func TestHeuristicPurchaseIntent(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"just ordered a pair of Brooks, heard they're great")
	require.NoError(t, err)

	assert.Equal(t, []string{"Brooks"}, res.Brands)
	assert.Equal(t, models.IntentBuy, res.Intent)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
}

func TestHeuristicComplaint(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"my Allbirds are falling apart after two months, never again")
	require.NoError(t, err)

	assert.Equal(t, []string{"Allbirds"}, res.Brands)
	assert.Equal(t, models.IntentComplaint, res.Intent)
	assert.Equal(t, models.SentimentStrongNegative, res.Sentiment)
}

func TestHeuristicRecommendation(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"highly recommend Salomon for trail days")
	require.NoError(t, err)

	assert.Equal(t, []string{"Salomon"}, res.Brands)
	assert.Equal(t, models.IntentRecommendation, res.Intent)
}

func TestHeuristicLongerPhraseShadowsSubstring(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"thinking about on running for my next pair")
	require.NoError(t, err)

	assert.Contains(t, res.Brands, "On Running")
}

func TestHeuristicComparativeForcesSwitchTag(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"Hoka is so much better than Nike, not even close")
	require.NoError(t, err)

	assert.Contains(t, res.Tags, "brand-switch")
	assert.Equal(t, models.IntentOwn, res.Intent)
	assert.Equal(t, models.SentimentStrongPositive, res.Sentiment)
}

func TestHeuristicTagCap(t *testing.T) {
	h := NewHeuristicExtractor(nil)

	res, err := h.Extract(context.Background(),
		"switched from nike to hoka, most comfortable running shoes i own")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(res.Tags), 5)
}

func TestHeuristicCustomVocabulary(t *testing.T) {
	h := NewHeuristicExtractor([]string{"acme"})

	res, err := h.Extract(context.Background(), "i love my acme boots")
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme"}, res.Brands)
	assert.Equal(t, models.SentimentStrongPositive, res.Sentiment)
}
