package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus represents the lifecycle of a scheduled session.
const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusCompleted = "completed"
)

// Meeting is a scheduled conferencing session. It is created by the
// scheduling path or synthesized by the Coordinator when a webhook
// arrives for a meeting it has never seen.
type Meeting struct {
	ID                uuid.UUID `json:"id"`
	ExternalMeetingID string    `json:"external_meeting_id,omitempty"`
	Topic             string    `json:"topic"`
	CourseID          *int64    `json:"course_id,omitempty"`
	Status            string    `json:"status"`
	StartTime         time.Time `json:"start_time"`
	JoinURL           string    `json:"join_url,omitempty"`
	StartURL          string    `json:"start_url,omitempty"`
	LicenseID         *uuid.UUID `json:"license_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
