package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edurecord/pipeline/internal/recordings"
	"github.com/edurecord/pipeline/pkg/response"
)

// Health handles GET /healthz.
func Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// RecordingHandler exposes a small supplemental read surface over stored
// Recordings, grounded in the teacher's single-resource GET handlers.
type RecordingHandler struct {
	recordingsRepo *recordings.Repository
}

// NewRecordingHandler creates a RecordingHandler.
func NewRecordingHandler(recordingsRepo *recordings.Repository) *RecordingHandler {
	return &RecordingHandler{recordingsRepo: recordingsRepo}
}

// GetByID handles GET /admin/recordings/:id.
func (h *RecordingHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	rec, err := h.recordingsRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == recordings.ErrNotFound {
			response.NotFound(c, "recording not found")
			return
		}
		response.Internal(c, err.Error())
		return
	}
	response.OK(c, rec)
}
