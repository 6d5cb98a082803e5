package retryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edurecord/pipeline/internal/models"
)

func TestMode_ForceRedownloadAlwaysFull(t *testing.T) {
	req := Request{ForceRedownload: true, Republish: true}
	rec := &models.Recording{ArtifactURL: "https://store.example.com/x"}
	assert.Equal(t, "full", mode(req, rec))
}

func TestMode_RepublishRequiresExistingArtifact(t *testing.T) {
	req := Request{Republish: true}
	assert.Equal(t, "republish", mode(req, &models.Recording{ArtifactURL: "https://store.example.com/x"}))
	assert.Equal(t, "full", mode(req, &models.Recording{ArtifactURL: ""}))
	assert.Equal(t, "full", mode(req, nil))
}

func TestMode_DefaultsToFull(t *testing.T) {
	assert.Equal(t, "full", mode(Request{}, nil))
}

func TestDedupeKey_PrefersRecording(t *testing.T) {
	tg := target{recording: &models.Recording{ExternalRecordingID: "rec-1"}, externalMeetingID: "meeting-1"}
	assert.Equal(t, "rec:rec-1", dedupeKey(tg))
}

func TestDedupeKey_FallsBackToMeeting(t *testing.T) {
	tg := target{externalMeetingID: "meeting-1"}
	assert.Equal(t, "meeting:meeting-1", dedupeKey(tg))
}

func TestRecordingIDOf_NilSafe(t *testing.T) {
	assert.Equal(t, "", recordingIDOf(nil))
	assert.Equal(t, "rec-1", recordingIDOf(&models.Recording{ExternalRecordingID: "rec-1"}))
}

func TestResult_FieldsSetDirectly(t *testing.T) {
	r := Result{Selector: "externalMeetingId", Mode: "full", Status: "ok", Reason: ReasonRepublished}
	assert.Equal(t, "externalMeetingId", r.Selector)
	assert.Equal(t, ReasonRepublished, r.Reason)
}
