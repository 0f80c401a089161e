// Package reco builds recommendation artifacts for the human gate: an
// append-only gzip evidence bundle and a markdown draft, registered as
// one idempotent draft row per eligible event.
package reco

import (
	"regexp"
	"strings"
)

var (
	urlRe     = regexp.MustCompile(`https?://\S+`)
	userRe    = regexp.MustCompile(`\bu/([A-Za-z0-9_-]+)\b`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// Sanitize returns the display-safe form of raw evidence text: links and
// usernames are masked, runs of blank lines collapsed. The canonical raw
// text stays in the bundle; this form is only for markdown excerpts.
func Sanitize(text string) string {
	t := strings.TrimSpace(text)
	t = urlRe.ReplaceAllString(t, "[link removed]")
	t = userRe.ReplaceAllString(t, "u/[user]")
	t = newlineRe.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// clip truncates s to at most n runes, marking the cut.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// slugify lowers s to a filesystem-safe slug.
func slugify(s string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == ' ', ch == '-', ch == '_', ch == '.':
			b.WriteByte('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "unknown-entity"
	}
	return slug
}
