package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Envelope is the admission wire format.
type Envelope struct {
	Source     string         `json:"source"`
	PlatformID string         `json:"platform_id"`
	Timestamp  string         `json:"timestamp"`
	Text       string         `json:"text"`
	URL        *string        `json:"url,omitempty"`
	Meta       map[string]any `json:"meta"`
}

// Normalize converts one feed post into the admission envelope. Author
// identity is carried only as a hash; raw usernames never reach storage.
func Normalize(post FeedPost) Envelope {
	title := strings.TrimSpace(post.Title)
	body := strings.TrimSpace(post.SelfText)
	ts := time.Unix(int64(post.CreatedUTC), 0).UTC()

	var permalink *string
	if post.Permalink != "" {
		u := "https://www.reddit.com" + post.Permalink
		permalink = &u
	}

	return Envelope{
		Source:     "reddit",
		PlatformID: fmt.Sprintf("reddit_post_%s", post.ID),
		Timestamp:  ts.Format(time.RFC3339),
		Text:       title + "\n\n" + body,
		URL:        permalink,
		Meta: map[string]any{
			"community":   post.Subreddit,
			"author_hash": hashAuthor(post.Author),
			"platform_id": post.ID,
		},
	}
}

// hashAuthor replaces a username with a stable non-reversible token.
func hashAuthor(author string) string {
	if author == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(author)))
	return hex.EncodeToString(sum[:8])
}
