package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewURL_ReplacesTrailingView(t *testing.T) {
	assert.Equal(t, "https://store.example.com/file/d/abc/preview", previewURL("https://store.example.com/file/d/abc/view"))
}

func TestPreviewURL_AppendsWhenNoViewSuffix(t *testing.T) {
	assert.Equal(t, "https://store.example.com/file/d/abc/preview", previewURL("https://store.example.com/file/d/abc"))
}

func TestEmbedHTML_ContainsPreviewIframe(t *testing.T) {
	html := embedHTML("https://store.example.com/file/d/abc/view")
	assert.Contains(t, html, "https://store.example.com/file/d/abc/preview")
	assert.Contains(t, html, "<iframe")
}

func TestDiscussionSubject_Format(t *testing.T) {
	assert.Equal(t, "Algebra I | 2026-08-06 [rec-1]", discussionSubject("Algebra I", "2026-08-06", "rec-1"))
}
