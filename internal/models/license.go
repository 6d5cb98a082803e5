package models

import (
	"time"

	"github.com/google/uuid"
)

// License is an external-account slot assigned for the duration of a
// scheduled meeting. The core only ever calls Release(meetingID); pool
// assignment and creation live outside core scope.
type License struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	Released  bool      `json:"released"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
