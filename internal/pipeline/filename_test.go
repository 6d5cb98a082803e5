package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalFileName_SanitizesUnsafeChars(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	name := localFileName("Week 1: Intro/Overview!", at, "rec-123")
	assert.True(t, strings.HasSuffix(name, "_rec-123.mp4"))
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, "!")
	assert.Contains(t, name, "20260102T030405Z")
}

func TestLocalFileName_TruncatesLongTopic(t *testing.T) {
	longTopic := strings.Repeat("a", 100)
	at := time.Now()
	name := localFileName(longTopic, at, "rec-1")
	sanitizedPart := strings.SplitN(name, "_", 2)[0]
	assert.LessOrEqual(t, len(sanitizedPart), 50)
}
