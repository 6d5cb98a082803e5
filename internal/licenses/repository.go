// Package licenses models the external-account slot the core releases
// when a recording is persisted. Pool assignment and creation are out of
// core scope; only Release(meetingID) matters here.
package licenses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNoLicenseForMeeting describes a meeting with no matching license
// row. Release does not return it: whether that case is a no-op or a
// fault is an open question in the source spec, and this implementation
// treats it as a no-op (see SPEC_FULL.md "Open Questions").
var ErrNoLicenseForMeeting = errors.New("licenses: no license bound to meeting")

// Repository handles license persistence.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a licenses repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// Release marks the license bound to meetingID as released. A meeting
// synthesized from an LTI/webhook flow may carry no license reference at
// all (zoomLicenseId null); that case is logged at info and treated as a
// no-op rather than propagated as an error.
func (r *Repository) Release(ctx context.Context, meetingID uuid.UUID) error {
	const q = `UPDATE licenses SET released = true, released_at = NOW() WHERE meeting_id = $1 AND released = false`
	tag, err := r.pool.Exec(ctx, q, meetingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		r.logger.Info("license:release no-op, no license bound to meeting", zap.String("meeting_id", meetingID.String()))
		return nil
	}
	r.logger.Info("license:release released", zap.String("meeting_id", meetingID.String()))
	return nil
}

// GetByMeetingID reports whether a license row is bound to meetingID.
func (r *Repository) GetByMeetingID(ctx context.Context, meetingID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM licenses WHERE meeting_id = $1`
	var dummy int
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
