// Package wakeup implements the Preview Wakeup Job (C9): a daily re-probe
// of stored artifacts whose object-store preview generation stalled,
// bounded to two attempts per Recording (I4), per §4.9.
package wakeup

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/edurecord/pipeline/internal/cache"
	"github.com/edurecord/pipeline/internal/models"
	"github.com/edurecord/pipeline/internal/provider"
	"github.com/edurecord/pipeline/internal/recordings"
	"github.com/edurecord/pipeline/internal/uploader"
)

// Config holds the scheduling tunables of §4.9.
type Config struct {
	ScheduleHour    int           // local hour to run, default 2 (02:00)
	WakeupCooldown  time.Duration // default 90 minutes
	ProbesPerSecond rate.Limit    // throttles object-store probes during a scan, default 5
}

// DefaultConfig returns §4.9's stated defaults.
func DefaultConfig() Config {
	return Config{ScheduleHour: 2, WakeupCooldown: 90 * time.Minute, ProbesPerSecond: 5}
}

// Job scans for stalled artifacts once a day and nudges the object store.
type Job struct {
	recordingsRepo *recordings.Repository
	uploaderClient *uploader.Uploader
	cache          *cache.Store
	cfg            Config
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// New creates a Wakeup Job.
func New(recordingsRepo *recordings.Repository, uploaderClient *uploader.Uploader, cacheStore *cache.Store, cfg Config, logger *zap.Logger) *Job {
	if cfg.ScheduleHour == 0 && cfg.WakeupCooldown == 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.ProbesPerSecond > 0 {
		limiter = rate.NewLimiter(cfg.ProbesPerSecond, 1)
	}
	return &Job{recordingsRepo: recordingsRepo, uploaderClient: uploaderClient, cache: cacheStore, cfg: cfg, limiter: limiter, logger: logger}
}

// Run blocks, firing RunOnce every day at cfg.ScheduleHour local time,
// until ctx is cancelled. Grounded in the teacher's ticker-goroutine loop
// shape: compute the next boundary, sleep to it, run, repeat.
func (j *Job) Run(ctx context.Context) {
	for {
		wait := time.Until(j.nextRun(time.Now()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("wakeup:stopping")
			return
		case <-timer.C:
		}
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Error("wakeup:run-failed", zap.Error(err))
		}
	}
}

func (j *Job) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), j.cfg.ScheduleHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce selects yesterday's candidates and re-probes each, per §4.9's
// selection query.
func (j *Job) RunOnce(ctx context.Context) error {
	now := time.Now()
	windowStart := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, now.Location())
	windowEnd := windowStart.AddDate(0, 0, 1)

	candidates, err := j.recordingsRepo.ListWakeupCandidates(ctx, windowStart, windowEnd, j.cfg.WakeupCooldown, now)
	if err != nil {
		return err
	}
	j.logger.Info("wakeup:scan", zap.Int("candidates", len(candidates)))
	for _, rec := range candidates {
		j.probe(ctx, rec, now)
	}
	return nil
}

func (j *Job) probe(ctx context.Context, rec models.Recording, now time.Time) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return
		}
	}
	fileID, ok := provider.FileIDFromURL(rec.ArtifactURL)
	if !ok {
		j.logger.Warn("wakeup:no-file-id", zap.String("recording_id", rec.ID.String()))
		j.bumpAttempts(ctx, rec, rec.WakeupAttempts+1, now)
		return
	}

	meta, err := j.uploaderClient.GetMetadata(ctx, fileID)
	if err == nil && meta.HasThumbnail && meta.ProcessingStatus != "ready" {
		j.logger.Info("wakeup:give-up", zap.String("recording_id", rec.ID.String()))
		_ = j.cache.MarkGivenUp(ctx, rec.ID.String())
		j.bumpAttempts(ctx, rec, models.WakeupGiveUpAttempts, now)
		return
	}

	if err == nil && meta.PreviewURL != "" {
		_ = j.uploaderClient.ProbePreview(ctx, meta.PreviewURL)
	}
	_, _ = j.uploaderClient.GetMetadata(ctx, fileID)

	j.bumpAttempts(ctx, rec, rec.WakeupAttempts+1, now)
}

func (j *Job) bumpAttempts(ctx context.Context, rec models.Recording, attempts int, now time.Time) {
	if attempts > models.WakeupGiveUpAttempts {
		attempts = models.WakeupGiveUpAttempts
	}
	if err := j.recordingsRepo.RecordWakeupAttempt(ctx, rec.ID, now, attempts); err != nil {
		j.logger.Error("wakeup:record-attempt-failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
	}
}
