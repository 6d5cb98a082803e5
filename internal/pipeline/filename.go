package pipeline

import (
	"fmt"
	"regexp"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// localFileName implements §4.7's naming rule:
// <sanitized-topic>_<ISO-timestamp>_<externalRecordingId>.mp4
func localFileName(topic string, at time.Time, externalRecordingID string) string {
	sanitized := unsafeChars.ReplaceAllString(topic, "_")
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	return fmt.Sprintf("%s_%s_%s.mp4", sanitized, at.UTC().Format("20060102T150405Z"), externalRecordingID)
}
