// Package meetings persists the Meeting aggregate (§3 of the ingestion spec).
package meetings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edurecord/pipeline/internal/models"
)

// ErrNotFound is returned when a lookup finds no row.
var ErrNotFound = errors.New("meeting: not found")

// Repository handles meeting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectCols = `id, COALESCE(external_meeting_id,''), topic, course_id, status, start_time, COALESCE(join_url,''), COALESCE(start_url,''), license_id, created_at, updated_at`

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	if err := row.Scan(&m.ID, &m.ExternalMeetingID, &m.Topic, &m.CourseID, &m.Status, &m.StartTime, &m.JoinURL, &m.StartURL, &m.LicenseID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new meeting row (scheduling path, or synthesized by the Coordinator).
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, external_meeting_id, topic, course_id, status, start_time, join_url, start_url, license_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, nullableString(m.ExternalMeetingID), m.Topic, m.CourseID, m.Status, m.StartTime, nullableString(m.JoinURL), nullableString(m.StartURL), m.LicenseID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a meeting by internal id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	const q = `SELECT ` + selectCols + ` FROM meetings WHERE id = $1`
	m, err := scanMeeting(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// GetByExternalID returns a meeting by the conferencing-provider external id.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.Meeting, error) {
	const q = `SELECT ` + selectCols + ` FROM meetings WHERE external_meeting_id = $1`
	m, err := scanMeeting(r.pool.QueryRow(ctx, q, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// UpdateCourseID sets the resolved course binding.
func (r *Repository) UpdateCourseID(ctx context.Context, id uuid.UUID, courseID int64) error {
	const q = `UPDATE meetings SET course_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, courseID, id)
	return err
}

// MarkCompleted transitions the meeting to completed exactly once per external id (idempotent update).
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE meetings SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> $1`
	_, err := r.pool.Exec(ctx, q, models.MeetingStatusCompleted, id)
	return err
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
