package models

import (
	"time"

	"github.com/google/uuid"
)

// WakeupGiveUpAttempts is the bounded attempt count past which the Preview
// Wakeup Job gives up on an artifact gracefully (I4).
const WakeupGiveUpAttempts = 2

// Recording is the result of one successful ingestion: a meeting's video
// republished to the long-term object store.
type Recording struct {
	ID                  uuid.UUID  `json:"id"`
	MeetingID           uuid.UUID  `json:"meeting_id"`
	ExternalRecordingID string     `json:"external_recording_id"`
	ArtifactURL          string     `json:"artifact_url"`
	ArtifactFileID       string     `json:"artifact_file_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	RetryCount           int        `json:"retry_count"`
	LastRetryAt          *time.Time `json:"last_retry_at,omitempty"`
	WakeupAttempts        int        `json:"wakeup_attempts"`
	LastWakeupAt          *time.Time `json:"last_wakeup_at,omitempty"`
}
