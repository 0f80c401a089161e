package reco

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMasksLinks(t *testing.T) {
	got := Sanitize("check https://example.com/deal?x=1 and http://foo.bar")
	assert.Equal(t, "check [link removed] and [link removed]", got)
}

func TestSanitizeMasksUsernames(t *testing.T) {
	got := Sanitize("thanks u/some_runner-42 for the tip")
	assert.Equal(t, "thanks u/[user] for the tip", got)
}

func TestSanitizeCollapsesBlankLines(t *testing.T) {
	got := Sanitize("first\n\n\n\n\nsecond")
	assert.Equal(t, "first\n\nsecond", got)
}

func TestSanitizeKeepsSingleBlankLine(t *testing.T) {
	got := Sanitize("title\n\nbody")
	assert.Equal(t, "title\n\nbody", got)
}

func TestSanitizeTrims(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("  \n hello \n "))
	assert.Empty(t, Sanitize("   "))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "exact", clip("exact", 5))
	assert.Equal(t, "long…", clip("longer", 5))

	// Rune-safe: multibyte text is never cut mid-character.
	got := clip("héllo wörld", 6)
	assert.Equal(t, "héllo…", got)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "on-running", slugify("On Running"))
	assert.Equal(t, "duluth-trading", slugify("  Duluth   Trading  "))
	assert.Equal(t, "hoka", slugify("HOKA!!!"))
	assert.Equal(t, "unknown-entity", slugify("???"))
	assert.Equal(t, "arcteryx", slugify("Arc'teryx-"))
}
