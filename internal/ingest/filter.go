package ingest

import "strings"

// minBodyLength rejects one-word posts.
const minBodyLength = 10

// IsValidTextPost reports whether a feed post carries real text content.
// Conservative: link posts, removed and deleted bodies, and trivially
// short bodies are all rejected.
func IsValidTextPost(post FeedPost) bool {
	body := strings.TrimSpace(post.SelfText)
	if body == "" {
		return false
	}
	if body == "[removed]" || body == "[deleted]" {
		return false
	}
	return len(body) >= minBodyLength
}
