// Package pipeline implements the Pipeline Coordinator (C7): idempotency
// checks, state transitions, and orchestration of the Downloader,
// Uploader, Course Resolver and LMS client into the download-upload-
// publish state machine of §4.7. Both the webhook path and the Manual
// Retry Engine's full mode converge on executePipeline.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edurecord/pipeline/internal/courses"
	"github.com/edurecord/pipeline/internal/downloader"
	"github.com/edurecord/pipeline/internal/guard"
	"github.com/edurecord/pipeline/internal/licenses"
	"github.com/edurecord/pipeline/internal/lms"
	"github.com/edurecord/pipeline/internal/meetings"
	"github.com/edurecord/pipeline/internal/models"
	"github.com/edurecord/pipeline/internal/provider"
	"github.com/edurecord/pipeline/internal/recordings"
	"github.com/edurecord/pipeline/internal/retry"
	"github.com/edurecord/pipeline/internal/uploader"
)

// Outcome is the Coordinator's response shape, mirrored onto both the
// webhook response body and the manual-retry per-target record.
type Outcome struct {
	Status   string // "done", "in-flight", "ignored"
	DriveURL string
}

const (
	StatusDone     = "done"
	StatusInFlight = "in-flight"
	StatusIgnored  = "ignored"
)

// Context is the ambient per-process state threaded into the Coordinator
// at construction (§9): the three concurrency guards, kept as an explicit
// value rather than module-level globals so tests can construct fresh
// instances per case.
type Context struct {
	MeetingGuard *guard.MeetingGuard
	FileLocks    *guard.FileLocks
	UploadSem    *guard.UploadSemaphore
}

// NewContext creates a fresh guard set.
func NewContext(uploadConcurrency int) *Context {
	return &Context{
		MeetingGuard: guard.NewMeetingGuard(),
		FileLocks:    guard.NewFileLocks(),
		UploadSem:    guard.NewUploadSemaphore(uploadConcurrency),
	}
}

// Coordinator wires the transfer engines, repositories, and external
// collaborators into the pipeline state machine.
type Coordinator struct {
	pctx *Context

	meetingsRepo   *meetings.Repository
	recordingsRepo *recordings.Repository
	licensesRepo   *licenses.Repository
	resolver       *courses.Resolver

	dl        *downloader.Downloader
	ul        *uploader.Uploader
	lmsClient *lms.Client
	tokens    downloader.TokenRefresher

	downloadPolicy   retry.Policy
	uploadPolicy     retry.Policy
	permissionPolicy retry.Policy

	cfg    Config
	logger *zap.Logger
}

// New creates a Pipeline Coordinator.
func New(
	pctx *Context,
	meetingsRepo *meetings.Repository,
	recordingsRepo *recordings.Repository,
	licensesRepo *licenses.Repository,
	resolver *courses.Resolver,
	dl *downloader.Downloader,
	ul *uploader.Uploader,
	lmsClient *lms.Client,
	tokens downloader.TokenRefresher,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		pctx:             pctx,
		meetingsRepo:     meetingsRepo,
		recordingsRepo:   recordingsRepo,
		licensesRepo:     licensesRepo,
		resolver:         resolver,
		dl:               dl,
		ul:               ul,
		lmsClient:        lmsClient,
		tokens:           tokens,
		downloadPolicy:   retry.DefaultDownloadPolicy(),
		uploadPolicy:     retry.DefaultUploadPolicy(),
		permissionPolicy: retry.Policy{Base: time.Second, Max: 30 * time.Second, Attempts: 5, Label: "drive-permission"},
		cfg:              cfg,
		logger:           logger,
	}
}

// ProcessCompletedRecording is the webhook entry point of §4.7.
func (c *Coordinator) ProcessCompletedRecording(ctx context.Context, externalMeetingID, topic string, files []provider.RecordingFile, downloadToken string) (*Outcome, error) {
	if err := c.pctx.MeetingGuard.TryAcquire(externalMeetingID); err != nil {
		return &Outcome{Status: StatusInFlight}, nil
	}
	defer c.pctx.MeetingGuard.Release(externalMeetingID)

	meeting, err := c.meetingsRepo.GetByExternalID(ctx, externalMeetingID)
	if err != nil && err != meetings.ErrNotFound {
		return nil, err
	}

	if meeting == nil {
		courseID, err := c.resolver.Resolve(ctx, topic)
		if err != nil {
			if err == courses.ErrNoCourseResolved {
				c.logger.Warn("pipeline:no-course-resolved", zap.String("topic", topic))
				return &Outcome{Status: StatusIgnored}, nil
			}
			return nil, err
		}
		meeting = &models.Meeting{
			ExternalMeetingID: externalMeetingID,
			Topic:             topic,
			CourseID:          &courseID,
			Status:            models.MeetingStatusScheduled,
			StartTime:         time.Now(),
		}
		if err := c.meetingsRepo.Create(ctx, meeting); err != nil {
			return nil, err
		}
	} else if meeting.Status == models.MeetingStatusCompleted {
		if rec, err := c.mostRecentArtifact(ctx, meeting.ID); err == nil && rec != nil {
			return &Outcome{Status: StatusDone, DriveURL: rec.ArtifactURL}, nil
		}
	}

	file, ok := provider.SelectMP4(files)
	if !ok {
		c.logger.Warn("pipeline:no-drive-url-found", zap.String("external_meeting_id", externalMeetingID))
		return &Outcome{Status: StatusIgnored}, nil
	}

	return c.executePipeline(ctx, meeting, file, downloadToken)
}

func (c *Coordinator) mostRecentArtifact(ctx context.Context, meetingID uuid.UUID) (*models.Recording, error) {
	recs, err := c.recordingsRepo.ListByMeetingID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.ArtifactURL != "" {
			return &r, nil
		}
	}
	return nil, nil
}

// ExecuteFullPipeline runs the full download-upload-publish pipeline for
// an already-resolved meeting, guarded the same way as the webhook path.
// Used by the Manual Retry Engine's "full" mode (§4.8).
func (c *Coordinator) ExecuteFullPipeline(ctx context.Context, meeting *models.Meeting, file provider.RecordingFile, downloadToken string) (*Outcome, error) {
	key := meeting.ExternalMeetingID
	if key == "" {
		key = meeting.ID.String()
	}
	if err := c.pctx.MeetingGuard.TryAcquire(key); err != nil {
		return &Outcome{Status: StatusInFlight}, nil
	}
	defer c.pctx.MeetingGuard.Release(key)
	return c.executePipeline(ctx, meeting, file, downloadToken)
}

// executePipeline implements §4.7's idempotency short-circuits and the
// full download/upload/publish sequence. Callers must already hold the
// in-flight guard for meeting's key.
func (c *Coordinator) executePipeline(ctx context.Context, meeting *models.Meeting, file provider.RecordingFile, downloadToken string) (*Outcome, error) {
	externalRecordingID := file.ID

	if existing, err := c.recordingsRepo.GetByExternalRecordingID(ctx, externalRecordingID); err == nil {
		return c.finalizeAlreadyDone(ctx, meeting, existing)
	} else if err != recordings.ErrNotFound {
		return nil, err
	}

	if found, err := c.ul.FindByExternalRecordingID(ctx, externalRecordingID); err == nil && found != nil {
		rec := &models.Recording{
			MeetingID:           meeting.ID,
			ExternalRecordingID: externalRecordingID,
			ArtifactURL:         found.ViewURL,
			ArtifactFileID:      found.FileID,
		}
		if err := c.recordingsRepo.Create(ctx, rec); err != nil {
			return nil, err
		}
		return c.finalizeAlreadyDone(ctx, meeting, rec)
	}

	localPath := filepath.Join(c.cfg.DownloadsDir, localFileName(meeting.Topic, time.Now(), externalRecordingID))
	unlock := c.pctx.FileLocks.Lock(localPath)
	defer unlock()

	if err := c.downloadWithRetry(ctx, file, localPath, downloadToken); err != nil {
		return nil, err
	}

	if err := c.pctx.UploadSem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.pctx.UploadSem.Release()

	courseID := int64(0)
	if meeting.CourseID != nil {
		courseID = *meeting.CourseID
	}
	result, err := c.uploadWithRetry(ctx, localPath, meeting, courseID, externalRecordingID)
	if err != nil {
		return nil, err
	}

	c.grantPermissionBestEffort(ctx, result.FileID)
	c.waitForPreviewBestEffort(ctx, result.FileID)
	c.sleepPrepublish(ctx)

	if err := c.postDiscussion(ctx, courseID, meeting.Topic, externalRecordingID, result.ViewURL); err != nil {
		return nil, err
	}

	rec := &models.Recording{
		MeetingID:           meeting.ID,
		ExternalRecordingID: externalRecordingID,
		ArtifactURL:         result.ViewURL,
		ArtifactFileID:      result.FileID,
	}
	if err := c.recordingsRepo.Create(ctx, rec); err != nil {
		return nil, err
	}
	if err := c.meetingsRepo.MarkCompleted(ctx, meeting.ID); err != nil {
		return nil, err
	}
	if err := c.licensesRepo.Release(ctx, meeting.ID); err != nil {
		return nil, err
	}
	_ = os.Remove(localPath)

	return &Outcome{Status: StatusDone, DriveURL: result.ViewURL}, nil
}

func (c *Coordinator) finalizeAlreadyDone(ctx context.Context, meeting *models.Meeting, rec *models.Recording) (*Outcome, error) {
	if err := c.meetingsRepo.MarkCompleted(ctx, meeting.ID); err != nil {
		return nil, err
	}
	if err := c.licensesRepo.Release(ctx, meeting.ID); err != nil {
		return nil, err
	}
	return &Outcome{Status: StatusDone, DriveURL: rec.ArtifactURL}, nil
}

func (c *Coordinator) downloadWithRetry(ctx context.Context, file provider.RecordingFile, localPath, downloadToken string) error {
	return c.downloadPolicy.Do(ctx, c.logger, downloader.Classifier{}, func(attempt int) error {
		// The single-use token is offered on the first attempt only; later
		// attempts authenticate with the refreshed bearer token.
		token := ""
		if attempt == 0 {
			token = downloadToken
		}
		_, err := c.dl.Download(ctx, file.DownloadURL, localPath, token, c.tokens, file.FileSize)
		return err
	})
}

func (c *Coordinator) uploadWithRetry(ctx context.Context, localPath string, meeting *models.Meeting, courseID int64, externalRecordingID string) (*uploader.Result, error) {
	name := filepath.Base(localPath)
	meta := uploader.Metadata{
		MeetingID:           meeting.ID.String(),
		CourseID:            strconv.FormatInt(courseID, 10),
		ExternalRecordingID: externalRecordingID,
	}
	var result *uploader.Result
	err := c.uploadPolicy.Do(ctx, c.logger, uploader.Classifier{}, func(attempt int) error {
		r, err := c.ul.Upload(ctx, localPath, name, meta)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// grantPermissionBestEffort implements §4.2's independent, non-fatal
// permission-grant retry.
func (c *Coordinator) grantPermissionBestEffort(ctx context.Context, fileID string) {
	err := c.permissionPolicy.Do(ctx, c.logger, retry.AlwaysRetryable{}, func(attempt int) error {
		return c.ul.GrantReaderPermission(ctx, fileID)
	})
	if err != nil {
		c.logger.Warn("drive:permission-grant-failed", zap.String("file_id", fileID), zap.Error(err))
	}
}

// waitForPreviewBestEffort polls for a generated thumbnail up to
// PreviewPollTimeout; the pipeline never fails because of this step (§9).
func (c *Coordinator) waitForPreviewBestEffort(ctx context.Context, fileID string) {
	deadline := time.Now().Add(c.cfg.PreviewPollTimeout)
	for time.Now().Before(deadline) {
		meta, err := c.ul.GetMetadata(ctx, fileID)
		if err == nil && meta.HasThumbnail {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.PreviewPollInterval):
		}
	}
}

func (c *Coordinator) sleepPrepublish(ctx context.Context) {
	if c.cfg.PrepublishDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.PrepublishDelay):
	}
}

func (c *Coordinator) postDiscussion(ctx context.Context, courseID int64, topic, externalRecordingID, viewURL string) error {
	forums, err := c.lmsClient.ListForums(ctx, courseID)
	if err != nil {
		return err
	}
	forumID, ok := lms.ResolveForumID(forums)
	if !ok {
		return fmt.Errorf("pipeline: no forum available for course %d", courseID)
	}
	subject := discussionSubject(topic, time.Now().Format("2006-01-02"), externalRecordingID)
	return c.lmsClient.PostDiscussion(ctx, forumID, subject, embedHTML(viewURL))
}

// RepublishDiscussion implements the Manual Retry Engine's republish mode
// (§4.8): a new discussion with the existing preview URL and an updated
// subject, no transfer work.
func (c *Coordinator) RepublishDiscussion(ctx context.Context, meeting *models.Meeting, rec *models.Recording) error {
	courseID := int64(0)
	if meeting.CourseID != nil {
		courseID = *meeting.CourseID
	}
	return c.postDiscussion(ctx, courseID, meeting.Topic, rec.ExternalRecordingID, rec.ArtifactURL)
}
