// Package retryengine implements the Manual Retry Engine (C8): selector
// resolution, mode determination (republish vs full), and per-target
// dispatch onto the same Coordinator the webhook path uses, per §4.8.
package retryengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edurecord/pipeline/internal/courses"
	"github.com/edurecord/pipeline/internal/guard"
	"github.com/edurecord/pipeline/internal/meetings"
	"github.com/edurecord/pipeline/internal/models"
	"github.com/edurecord/pipeline/internal/pipeline"
	"github.com/edurecord/pipeline/internal/provider"
	"github.com/edurecord/pipeline/internal/recordings"
)

// Exact skip-reason strings required by §4.8.
const (
	ReasonAlreadyCompleted  = "already-completed"
	ReasonNoCourseResolved  = "no-course-resolved"
	ReasonNoDriveURLFound   = "no-drive-url-found"
	ReasonAlreadyInProgress = "already-in-progress"
	ReasonDryRun            = "dry-run"
	ReasonRepublished       = "republished-successfully"
)

const defaultLimit = 5

// Selector is the mutually-exclusive target selector of §4.8. Exactly one
// field group must be set.
type Selector struct {
	ExternalRecordingID string
	InternalMeetingID   string
	ExternalMeetingID   string
	From, To            time.Time
}

// Request is one /admin/recordings/retry call.
type Request struct {
	Selector         Selector
	Republish        bool
	ForceRedownload  bool
	ForceRepost      bool
	OverrideCourseID *int64
	DryRun           bool
	Limit            int
}

// Result is one target's outcome record.
type Result struct {
	Selector            string `json:"selector"`
	Mode                string `json:"mode"`
	Status              string `json:"status"`
	Reason              string `json:"reason,omitempty"`
	MeetingID           string `json:"meetingId,omitempty"`
	RecordingID         string `json:"recordingId,omitempty"`
	ExternalMeetingID   string `json:"externalMeetingId,omitempty"`
	ExternalRecordingID string `json:"externalRecordingId,omitempty"`
	DriveURL            string `json:"driveUrl,omitempty"`
}

// target is an internal resolution tuple, possibly partial.
type target struct {
	meeting           *models.Meeting
	recording         *models.Recording
	topic             string
	externalMeetingID string
}

// Engine dispatches manual retry requests.
type Engine struct {
	meetingsRepo   *meetings.Repository
	recordingsRepo *recordings.Repository
	resolver       *courses.Resolver
	providerClient *provider.Client
	coordinator    *pipeline.Coordinator
	retryGuard     *guard.RetryGuard
	concurrency    int
	logger         *zap.Logger
}

// New creates a Manual Retry Engine.
func New(
	meetingsRepo *meetings.Repository,
	recordingsRepo *recordings.Repository,
	resolver *courses.Resolver,
	providerClient *provider.Client,
	coordinator *pipeline.Coordinator,
	retryGuard *guard.RetryGuard,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		meetingsRepo:   meetingsRepo,
		recordingsRepo: recordingsRepo,
		resolver:       resolver,
		providerClient: providerClient,
		coordinator:    coordinator,
		retryGuard:     retryGuard,
		concurrency:    3,
		logger:         logger,
	}
}

// Dispatch resolves the request's targets and runs each concurrently
// (bounded), per §4.8. Failures in one target never abort the batch.
func (e *Engine) Dispatch(ctx context.Context, req Request) ([]Result, error) {
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	targets, selectorLabel, err := e.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(targets) > req.Limit {
		targets = targets[:req.Limit]
	}

	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = e.dispatchOne(gctx, req, t, selectorLabel)
			return nil
		})
	}
	_ = g.Wait() // per-target errors are captured in results, never abort the batch
	return results, nil
}

func (e *Engine) resolveTargets(ctx context.Context, req Request) ([]target, string, error) {
	sel := req.Selector
	switch {
	case sel.ExternalRecordingID != "":
		rec, err := e.recordingsRepo.GetByExternalRecordingID(ctx, sel.ExternalRecordingID)
		if err != nil && err != recordings.ErrNotFound {
			return nil, "", err
		}
		if rec == nil {
			return nil, "externalRecordingId", nil
		}
		meeting, err := e.meetingsRepo.GetByID(ctx, rec.MeetingID)
		if err != nil {
			return nil, "", err
		}
		return []target{{meeting: meeting, recording: rec, topic: meeting.Topic, externalMeetingID: meeting.ExternalMeetingID}}, "externalRecordingId", nil

	case sel.InternalMeetingID != "":
		id, err := uuid.Parse(sel.InternalMeetingID)
		if err != nil {
			return nil, "", err
		}
		meeting, err := e.meetingsRepo.GetByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		rec, _ := e.latestRecording(ctx, meeting.ID)
		return []target{{meeting: meeting, recording: rec, topic: meeting.Topic, externalMeetingID: meeting.ExternalMeetingID}}, "internalMeetingId", nil

	case sel.ExternalMeetingID != "":
		meeting, err := e.meetingsRepo.GetByExternalID(ctx, sel.ExternalMeetingID)
		if err != nil && err != meetings.ErrNotFound {
			return nil, "", err
		}
		if meeting != nil {
			rec, _ := e.latestRecording(ctx, meeting.ID)
			return []target{{meeting: meeting, recording: rec, topic: meeting.Topic, externalMeetingID: meeting.ExternalMeetingID}}, "externalMeetingId", nil
		}
		providerMeeting, err := e.providerClient.GetMeetingRecordings(ctx, sel.ExternalMeetingID)
		if err != nil {
			return nil, "", err
		}
		return []target{{topic: providerMeeting.Topic, externalMeetingID: sel.ExternalMeetingID}}, "externalMeetingId", nil

	case !sel.From.IsZero() && !sel.To.IsZero():
		recs, err := e.recordingsRepo.ListByCreatedRange(ctx, sel.From, sel.To, req.Limit)
		if err != nil {
			return nil, "", err
		}
		var out []target
		for _, r := range recs {
			meeting, err := e.meetingsRepo.GetByID(ctx, r.MeetingID)
			if err != nil {
				continue
			}
			rec := r
			out = append(out, target{meeting: meeting, recording: &rec, topic: meeting.Topic, externalMeetingID: meeting.ExternalMeetingID})
		}
		return out, "from-to", nil

	default:
		return nil, "", fmt.Errorf("retryengine: exactly one selector must be set")
	}
}

func (e *Engine) latestRecording(ctx context.Context, meetingID uuid.UUID) (*models.Recording, error) {
	recs, err := e.recordingsRepo.ListByMeetingID(ctx, meetingID)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// mode implements §4.8's mode determination.
func mode(req Request, rec *models.Recording) string {
	if req.ForceRedownload {
		return "full"
	}
	if req.Republish && rec != nil && rec.ArtifactURL != "" {
		return "republish"
	}
	return "full"
}

func (e *Engine) dispatchOne(ctx context.Context, req Request, t target, selectorLabel string) Result {
	base := Result{
		Selector:            selectorLabel,
		ExternalMeetingID:   t.externalMeetingID,
		ExternalRecordingID: recordingIDOf(t.recording),
	}
	if t.meeting != nil {
		base.MeetingID = t.meeting.ID.String()
	}
	if t.recording != nil {
		base.RecordingID = t.recording.ID.String()
	}

	m := mode(req, t.recording)
	base.Mode = m

	if req.DryRun {
		base.Status = "skipped"
		base.Reason = ReasonDryRun
		return base
	}

	key := dedupeKey(t)
	if !e.retryGuard.TryAcquire(key) {
		base.Status = "skipped"
		base.Reason = ReasonAlreadyInProgress
		return base
	}
	defer e.retryGuard.Release(key)

	if !req.ForceRedownload && t.meeting != nil && t.meeting.Status == models.MeetingStatusCompleted && m == "full" {
		base.Status = "skipped"
		base.Reason = ReasonAlreadyCompleted
		return base
	}

	if m == "republish" {
		return e.dispatchRepublish(ctx, req, t, base)
	}
	return e.dispatchFull(ctx, req, t, base)
}

func (e *Engine) dispatchRepublish(ctx context.Context, req Request, t target, result Result) Result {
	if t.recording == nil || t.recording.ArtifactURL == "" {
		result.Status = "skipped"
		result.Reason = ReasonNoDriveURLFound
		return result
	}
	if err := e.coordinator.RepublishDiscussion(ctx, t.meeting, t.recording); err != nil {
		result.Status = "failed"
		result.Reason = err.Error()
		return result
	}
	if err := e.recordingsRepo.IncrementRetry(ctx, t.recording.ID, time.Now()); err != nil {
		result.Status = "failed"
		result.Reason = err.Error()
		return result
	}
	result.Status = "ok"
	result.Reason = ReasonRepublished
	result.DriveURL = t.recording.ArtifactURL
	return result
}

func (e *Engine) dispatchFull(ctx context.Context, req Request, t target, result Result) Result {
	meeting := t.meeting
	topic := t.topic
	if meeting == nil || meeting.CourseID == nil {
		courseID, err := e.resolver.Resolve(ctx, topic)
		if err != nil {
			if err == courses.ErrNoCourseResolved {
				result.Status = "skipped"
				result.Reason = ReasonNoCourseResolved
				return result
			}
			result.Status = "failed"
			result.Reason = err.Error()
			return result
		}
		if req.OverrideCourseID != nil {
			courseID = *req.OverrideCourseID
		}
		if meeting == nil {
			meeting = &models.Meeting{
				ExternalMeetingID: t.externalMeetingID,
				Topic:             topic,
				CourseID:          &courseID,
				Status:            models.MeetingStatusScheduled,
				StartTime:         time.Now(),
			}
			if err := e.meetingsRepo.Create(ctx, meeting); err != nil {
				result.Status = "failed"
				result.Reason = err.Error()
				return result
			}
		} else if err := e.meetingsRepo.UpdateCourseID(ctx, meeting.ID, courseID); err != nil {
			result.Status = "failed"
			result.Reason = err.Error()
			return result
		}
	} else if req.OverrideCourseID != nil {
		if err := e.meetingsRepo.UpdateCourseID(ctx, meeting.ID, *req.OverrideCourseID); err != nil {
			result.Status = "failed"
			result.Reason = err.Error()
			return result
		}
	}
	result.MeetingID = meeting.ID.String()

	providerMeeting, err := e.providerClient.GetMeetingRecordings(ctx, meeting.ExternalMeetingID)
	if err != nil {
		result.Status = "failed"
		result.Reason = err.Error()
		return result
	}
	file, ok := provider.SelectMP4(providerMeeting.RecordingFiles)
	if !ok {
		result.Status = "skipped"
		result.Reason = ReasonNoDriveURLFound
		return result
	}
	result.ExternalRecordingID = file.ID

	outcome, err := e.coordinator.ExecuteFullPipeline(ctx, meeting, file, "")
	if err != nil {
		result.Status = "failed"
		result.Reason = err.Error()
		return result
	}
	switch outcome.Status {
	case pipeline.StatusInFlight:
		result.Status = "skipped"
		result.Reason = ReasonAlreadyInProgress
	case pipeline.StatusIgnored:
		result.Status = "skipped"
		result.Reason = ReasonNoDriveURLFound
	default:
		result.Status = "ok"
		result.DriveURL = outcome.DriveURL
	}
	return result
}

func dedupeKey(t target) string {
	if t.recording != nil {
		return "rec:" + t.recording.ExternalRecordingID
	}
	return "meeting:" + t.externalMeetingID
}

func recordingIDOf(rec *models.Recording) string {
	if rec == nil {
		return ""
	}
	return rec.ExternalRecordingID
}
