package extract

import (
	"context"
	"strings"

	"github.com/evafinance/evacore/internal/models"
)

// HeuristicVersion marks rows produced by the deterministic fallback.
const HeuristicVersion = "fallback:v1"

// defaultBrandVocabulary is the known-brand phrase list for fallback brand
// detection. Longer phrases are matched before their substrings.
var defaultBrandVocabulary = []string{
	"on running", "duluth trading", "new balance", "north face",
	"nike", "hoka", "lululemon", "crocs", "yeti", "allbirds", "ugg",
	"teva", "columbia", "vans", "timberland", "patagonia", "arcteryx",
	"salomon", "brooks", "carhartt", "adidas", "asics", "altra",
}

var (
	switchSignals = []string{
		"switching from", "switched from", "switched to", "moving from",
		"moved from", "done with", "never going back", "i'm done with",
		"im done with", "ditching", "replacing", "instead of",
	}
	comparativeSignals = []string{
		"better than", "worse than", "more comfortable than",
		"less comfortable than", "not even close", "beats", "crushes",
		"smokes", "blows",
	}
	strongPositiveSignals = []string{
		"love", "amazing", "insane", "never going back", "so much better",
		"way better", "obsessed",
	}
	strongNegativeSignals = []string{
		"hate", "trash", "awful", "terrible", "never again",
	}
	positiveSignals = []string{
		"great", "comfortable", "solid", "happy with", "worth it", "recommend",
	}
	negativeSignals = []string{
		"disappointed", "uncomfortable", "fell apart", "overpriced", "regret",
	}
	purchaseVerbs = []string{
		"bought", "just bought", "ordered", "just ordered", "purchased",
		"picked up", "buying",
	}
	ownershipVerbs = []string{
		"i own", "i have", "i've been using", "ive been using", "i use",
		"i wear", "been wearing", "switched",
	}
	recommendationCues = []string{
		"you should", "highly recommend", "must try", "can't recommend enough",
		"go get", "do yourself a favor",
	}
	complaintCues = []string{
		"never again", "avoid", "stay away", "waste of money", "falling apart",
		"customer service is",
	}
)

// HeuristicExtractor is the deterministic fallback path: pure lexicon
// matching, no I/O, total over all inputs.
type HeuristicExtractor struct {
	brands []string
}

// NewHeuristicExtractor builds the fallback with the default brand
// vocabulary, or the given one when non-empty.
func NewHeuristicExtractor(vocabulary []string) *HeuristicExtractor {
	if len(vocabulary) == 0 {
		vocabulary = defaultBrandVocabulary
	}
	return &HeuristicExtractor{brands: vocabulary}
}

// Version implements Extractor.
func (h *HeuristicExtractor) Version() string { return HeuristicVersion }

// Extract implements Extractor. It never returns an error.
func (h *HeuristicExtractor) Extract(_ context.Context, text string) (Result, error) {
	res := emptyResult(HeuristicVersion)
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return res, nil
	}

	res.Brands = h.detectBrands(lower)

	// Context tags.
	if containsAny(lower, []string{"run ", "running", "runner"}) || strings.HasSuffix(lower, "run") {
		res.Tags = ensure(res.Tags, "running")
	}
	if containsAny(lower, []string{"comfort", "comfortable"}) {
		res.Tags = ensure(res.Tags, "comfort")
	}

	// Sentiment by polarity lists; strong lists win.
	switch {
	case containsAny(lower, strongPositiveSignals):
		res.Sentiment = models.SentimentStrongPositive
	case containsAny(lower, strongNegativeSignals):
		res.Sentiment = models.SentimentStrongNegative
	case containsAny(lower, positiveSignals):
		res.Sentiment = models.SentimentPositive
	case containsAny(lower, negativeSignals):
		res.Sentiment = models.SentimentNegative
	}

	// Intent by keyword class. Purchase verbs dominate ownership.
	hasPurchase := containsAny(lower, purchaseVerbs)
	switch {
	case containsAny(lower, recommendationCues):
		res.Intent = models.IntentRecommendation
		if res.Sentiment == models.SentimentNeutral {
			res.Sentiment = models.SentimentPositive
		}
	case containsAny(lower, complaintCues):
		res.Intent = models.IntentComplaint
	case hasPurchase:
		res.Intent = models.IntentBuy
	case containsAny(lower, ownershipVerbs):
		res.Intent = models.IntentOwn
	}

	if containsAny(lower, switchSignals) {
		res.Tags = ensure(res.Tags, "brand-switch")
		if res.Intent == models.IntentNone {
			res.Intent = models.IntentOwn
		}
	}

	return enforceContract(lower, res), nil
}

func (h *HeuristicExtractor) detectBrands(lower string) []string {
	found := []string{}
	for _, brand := range h.brands {
		if strings.Contains(lower, brand) {
			// Skip substrings of an already-matched longer phrase.
			shadowed := false
			for _, f := range found {
				if strings.Contains(strings.ToLower(f), brand) {
					shadowed = true
					break
				}
			}
			if !shadowed {
				found = append(found, title(brand))
			}
		}
	}
	return found
}

// enforceContract applies the multi-brand comparative rule shared by both
// extraction paths: two or more brands plus switch/comparative language
// forces the brand-switch tag, and intent becomes own (buy when a
// purchase verb dominates). Comparative text is never left neutral.
func enforceContract(lower string, res Result) Result {
	isSwitchy := containsAny(lower, switchSignals)
	isComparative := containsAny(lower, comparativeSignals)

	if len(res.Brands) >= 2 && (isSwitchy || isComparative) {
		res.Tags = ensure(res.Tags, "brand-switch")
		if containsAny(lower, purchaseVerbs) {
			res.Intent = models.IntentBuy
		} else {
			res.Intent = models.IntentOwn
		}
	}

	if res.Sentiment == models.SentimentNeutral && (isSwitchy || isComparative) {
		switch {
		case containsAny(lower, strongNegativeSignals):
			res.Sentiment = models.SentimentStrongNegative
		case containsAny(lower, strongPositiveSignals):
			res.Sentiment = models.SentimentStrongPositive
		default:
			res.Sentiment = models.SentimentPositive
		}
	}

	if contains(res.Tags, "brand-switch") {
		if res.Intent == models.IntentNone {
			res.Intent = models.IntentOwn
		}
		if res.Sentiment == models.SentimentNeutral {
			res.Sentiment = models.SentimentPositive
		}
	}

	// Footwear context upgrades the generic comfort tag.
	if contains(res.Tags, "comfort") {
		if contains(res.Tags, "running") || containsAny(lower, []string{"shoe", "shoes", "sneaker", "sneakers"}) {
			res.Tags = ensure(res.Tags, "comfort-shoes")
		}
	}
	if len(res.Tags) > 5 {
		res.Tags = res.Tags[:5]
	}
	return res
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// title uppercases the first letter of each word for display-stable brand
// names ("on running" -> "On Running").
func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
