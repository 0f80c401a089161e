package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTextPost(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"empty body", "", false},
		{"whitespace only", "  \n\t ", false},
		{"removed marker", "[removed]", false},
		{"deleted marker", "[deleted]", false},
		{"too short", "nice", false},
		{"nine chars", "123456789", false},
		{"ten chars passes", "1234567890", true},
		{"real post", "Switched from Nike to Hoka and my knees thank me", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTextPost(FeedPost{Title: "t", SelfText: tt.body}))
		})
	}
}

func TestNormalize(t *testing.T) {
	env := Normalize(FeedPost{
		ID:         "1kabc9",
		Title:      "Best running shoes?",
		SelfText:   "  Switched from Nike to Hoka.  ",
		Author:     "Some_Runner",
		Subreddit:  "running",
		Permalink:  "/r/running/comments/1kabc9/best_running_shoes/",
		CreatedUTC: 1755691200,
	})

	assert.Equal(t, "reddit", env.Source)
	assert.Equal(t, "reddit_post_1kabc9", env.PlatformID)
	assert.Equal(t, "Best running shoes?\n\nSwitched from Nike to Hoka.", env.Text)

	ts, err := time.Parse(time.RFC3339, env.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1755691200, 0).UTC(), ts.UTC())

	require.NotNil(t, env.URL)
	assert.Equal(t, "https://www.reddit.com/r/running/comments/1kabc9/best_running_shoes/", *env.URL)

	assert.Equal(t, "running", env.Meta["community"])
	assert.Equal(t, "1kabc9", env.Meta["platform_id"])
}

func TestNormalizeWithoutPermalink(t *testing.T) {
	env := Normalize(FeedPost{ID: "x", Title: "t", SelfText: "body text here"})
	assert.Nil(t, env.URL)
}

func TestHashAuthorIsStableAndCaseInsensitive(t *testing.T) {
	a := hashAuthor("Some_Runner")
	b := hashAuthor("some_runner")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, hashAuthor("other_user"))
	assert.Empty(t, hashAuthor(""))

	// The raw username never appears in the meta payload.
	env := Normalize(FeedPost{ID: "x", Title: "t", SelfText: "body text here", Author: "Some_Runner"})
	hash, ok := env.Meta["author_hash"].(string)
	require.True(t, ok)
	assert.NotContains(t, strings.ToLower(hash), "runner")
	assert.Equal(t, a, hash)
}
