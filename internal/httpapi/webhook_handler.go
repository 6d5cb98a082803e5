package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edurecord/pipeline/internal/pipeline"
	"github.com/edurecord/pipeline/internal/provider"
	"github.com/edurecord/pipeline/internal/webhook"
)

// WebhookHandler exposes POST /webhook (§6).
type WebhookHandler struct {
	admitter    *webhook.Admitter
	coordinator *pipeline.Coordinator
	logger      *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(admitter *webhook.Admitter, coordinator *pipeline.Coordinator, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{admitter: admitter, coordinator: coordinator, logger: logger}
}

// Handle processes an inbound webhook. The response is always HTTP 200;
// logical status rides in the JSON body (§4.6).
func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, webhook.Result{Status: webhook.StatusIgnored})
		return
	}
	timestamp := c.GetHeader("X-Timestamp")
	signature := c.GetHeader("X-Signature")

	result, payload, ok := h.admitter.Admit(raw, timestamp, signature)
	if !ok && result != nil {
		c.JSON(http.StatusOK, result)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, webhook.Result{Status: webhook.StatusIgnored})
		return
	}

	files := make([]provider.RecordingFile, 0, len(payload.Object.RecordingFiles))
	for _, f := range payload.Object.RecordingFiles {
		files = append(files, provider.RecordingFile{
			ID:            f.ID,
			FileType:      f.FileType,
			RecordingType: f.RecordingType,
			Status:        f.Status,
			DownloadURL:   f.DownloadURL,
			FileSize:      f.FileSize,
		})
	}

	outcome, err := h.coordinator.ProcessCompletedRecording(c.Request.Context(), payload.Object.ID, payload.Object.Topic, files, payload.DownloadToken)
	if err != nil {
		h.logger.Error("webhook:pipeline-error", zap.Error(err), zap.String("external_meeting_id", payload.Object.ID))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome.Status, "driveUrl": outcome.DriveURL})
}
