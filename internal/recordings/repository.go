// Package recordings persists the Recording aggregate and backs the
// idempotency invariants (I1, I2) at the lookup layer: callers are
// expected to probe GetByExternalRecordingID before starting a transfer.
package recordings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edurecord/pipeline/internal/models"
)

// ErrNotFound is returned when a lookup finds no row.
var ErrNotFound = errors.New("recording: not found")

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectCols = `id, meeting_id, external_recording_id, artifact_url, COALESCE(artifact_file_id,''), created_at, retry_count, last_retry_at, wakeup_attempts, last_wakeup_at`

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	if err := row.Scan(&rec.ID, &rec.MeetingID, &rec.ExternalRecordingID, &rec.ArtifactURL, &rec.ArtifactFileID, &rec.CreatedAt, &rec.RetryCount, &rec.LastRetryAt, &rec.WakeupAttempts, &rec.LastWakeupAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a new recording row (I1: unique external_recording_id).
// Callers must probe GetByExternalRecordingID first.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (id, meeting_id, external_recording_id, artifact_url, artifact_file_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rec.MeetingID, rec.ExternalRecordingID, rec.ArtifactURL, nullableString(rec.ArtifactFileID)).
		Scan(&rec.ID, &rec.CreatedAt)
}

// GetByExternalRecordingID is the idempotency probe for §4.7: an existing
// row short-circuits the pipeline to "done" without any network I/O.
func (r *Repository) GetByExternalRecordingID(ctx context.Context, externalRecordingID string) (*models.Recording, error) {
	const q = `SELECT ` + selectCols + ` FROM recordings WHERE external_recording_id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, externalRecordingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// GetByID returns a recording by internal id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + selectCols + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByMeetingID returns recordings for a meeting, most recent first.
func (r *Repository) ListByMeetingID(ctx context.Context, meetingID uuid.UUID) ([]models.Recording, error) {
	const q = `SELECT ` + selectCols + ` FROM recordings WHERE meeting_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListPending returns recordings with no stored artifact, for the admin
// pending-retry listing endpoint (§6).
func (r *Repository) ListPending(ctx context.Context, limit int) ([]models.Recording, error) {
	const q = `SELECT ` + selectCols + ` FROM recordings WHERE artifact_url = '' ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// IncrementRetry bumps retryCount and sets lastRetryAt (manual republish only, §3).
func (r *Repository) IncrementRetry(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE recordings SET retry_count = retry_count + 1, last_retry_at = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, at, id)
	return err
}

// RecordWakeupAttempt bumps wakeupAttempts (bounded by the caller per I4)
// and sets lastWakeupAt. Mutated only by the Wakeup Job.
func (r *Repository) RecordWakeupAttempt(ctx context.Context, id uuid.UUID, at time.Time, attempts int) error {
	const q = `UPDATE recordings SET wakeup_attempts = $1, last_wakeup_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, attempts, at, id)
	return err
}

// ListWakeupCandidates selects Recordings eligible for the Preview Wakeup
// Job: createdAt within [windowStart, windowEnd), artifact present,
// wakeupAttempts below the bound, and lastWakeupAt null or older than cooldown.
func (r *Repository) ListWakeupCandidates(ctx context.Context, windowStart, windowEnd time.Time, cooldown time.Duration, now time.Time) ([]models.Recording, error) {
	const q = `SELECT ` + selectCols + ` FROM recordings
		WHERE created_at >= $1 AND created_at < $2
		AND artifact_url <> ''
		AND wakeup_attempts < $3
		AND (last_wakeup_at IS NULL OR last_wakeup_at <= $4)
		ORDER BY created_at ASC`
	cutoff := now.Add(-cooldown)
	rows, err := r.pool.Query(ctx, q, windowStart, windowEnd, models.WakeupGiveUpAttempts, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListByCreatedRange returns recordings created within [from, to], for
// the Manual Retry Engine's {from, to} selector (§4.8).
func (r *Repository) ListByCreatedRange(ctx context.Context, from, to time.Time, limit int) ([]models.Recording, error) {
	const q = `SELECT ` + selectCols + ` FROM recordings WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at ASC LIMIT $3`
	rows, err := r.pool.Query(ctx, q, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
