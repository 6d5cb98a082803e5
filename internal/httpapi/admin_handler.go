package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/edurecord/pipeline/internal/meetings"
	"github.com/edurecord/pipeline/internal/provider"
	"github.com/edurecord/pipeline/internal/recordings"
	"github.com/edurecord/pipeline/internal/retryengine"
	"github.com/edurecord/pipeline/pkg/response"
)

// AdminHandler exposes the /admin surface of §6.
type AdminHandler struct {
	engine         *retryengine.Engine
	meetingsRepo   *meetings.Repository
	recordingsRepo *recordings.Repository
	providerClient *provider.Client
	syncLimiter    *rate.Limiter
	logger         *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(engine *retryengine.Engine, meetingsRepo *meetings.Repository, recordingsRepo *recordings.Repository, providerClient *provider.Client, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		engine:         engine,
		meetingsRepo:   meetingsRepo,
		recordingsRepo: recordingsRepo,
		providerClient: providerClient,
		syncLimiter:    rate.NewLimiter(2, 1),
		logger:         logger,
	}
}

type retrySelectorRequest struct {
	ExternalRecordingID string     `json:"externalRecordingId"`
	InternalMeetingID    string     `json:"internalMeetingId"`
	ExternalMeetingID    string     `json:"externalMeetingId"`
	From                 *time.Time `json:"from"`
	To                   *time.Time `json:"to"`
	Republish            bool       `json:"republish"`
	ForceRedownload      bool       `json:"forceRedownload"`
	ForceRepost          bool       `json:"forceRepost"`
	OverrideCourseID     *int64     `json:"overrideCourseId"`
	DryRun               bool       `json:"dryRun"`
	Limit                int        `json:"limit"`
}

// Retry handles POST /admin/recordings/retry.
func (h *AdminHandler) Retry(c *gin.Context) {
	var body retrySelectorRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	req := retryengine.Request{
		Selector: retryengine.Selector{
			ExternalRecordingID: body.ExternalRecordingID,
			InternalMeetingID:   body.InternalMeetingID,
			ExternalMeetingID:   body.ExternalMeetingID,
		},
		Republish:        body.Republish,
		ForceRedownload:  body.ForceRedownload,
		ForceRepost:      body.ForceRepost,
		OverrideCourseID: body.OverrideCourseID,
		DryRun:           body.DryRun,
		Limit:            body.Limit,
	}
	if body.From != nil {
		req.Selector.From = *body.From
	}
	if body.To != nil {
		req.Selector.To = *body.To
	}

	results, err := h.engine.Dispatch(c.Request.Context(), req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, results)
}

type syncRequest struct {
	From                string `json:"from" binding:"required"`
	To                  string `json:"to" binding:"required"`
	DryRun              bool   `json:"dryRun"`
	MaxPages            int    `json:"maxPages"`
	OnlyMissingMeetings bool   `json:"onlyMissingMeetings"`
}

type syncSummary struct {
	TotalFound     int      `json:"totalFound"`
	NewCreated     int      `json:"newCreated"`
	ExistingFound  int      `json:"existingFound"`
	FilesProcessed int      `json:"filesProcessed"`
	Errors         []string `json:"errors"`
	PerItem        []gin.H  `json:"perItem"`
}

// Sync handles POST /admin/sync/recordings: a paginated historical
// backfill over the provider's recordings listing (§6).
func (h *AdminHandler) Sync(c *gin.Context) {
	var body syncRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	from, err := time.Parse("2006-01-02", body.From)
	if err != nil {
		response.BadRequest(c, "invalid from date")
		return
	}
	to, err := time.Parse("2006-01-02", body.To)
	if err != nil {
		response.BadRequest(c, "invalid to date")
		return
	}

	summary := syncSummary{}
	ctx := c.Request.Context()
	pageToken := ""
	maxPages := body.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	for page := 0; page < maxPages; page++ {
		if err := h.syncLimiter.Wait(ctx); err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			break
		}
		result, err := h.providerClient.ListRecordings(ctx, from, to, pageToken)
		if err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			break
		}
		for _, m := range result.Meetings {
			summary.TotalFound++
			existing, err := h.meetingExists(ctx, m.ID)
			if err != nil {
				summary.Errors = append(summary.Errors, err.Error())
				continue
			}
			if existing && body.OnlyMissingMeetings {
				summary.ExistingFound++
				continue
			}
			if existing {
				summary.ExistingFound++
			} else {
				summary.NewCreated++
			}
			item := gin.H{"externalMeetingId": m.ID, "topic": m.Topic, "existing": existing}
			if !body.DryRun {
				if _, ok := provider.SelectMP4(m.RecordingFiles); ok {
					results, err := h.engine.Dispatch(ctx, retryengine.Request{
						Selector: retryengine.Selector{ExternalMeetingID: m.ID},
						Limit:    1,
					})
					if err != nil {
						summary.Errors = append(summary.Errors, err.Error())
					} else if len(results) == 1 {
						item["status"] = results[0].Status
						item["reason"] = results[0].Reason
						if results[0].Status == "ok" {
							summary.FilesProcessed++
						}
					}
				}
			}
			summary.PerItem = append(summary.PerItem, item)
		}
		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	c.JSON(http.StatusOK, summary)
}

func (h *AdminHandler) meetingExists(ctx context.Context, externalMeetingID string) (bool, error) {
	_, err := h.meetingsRepo.GetByExternalID(ctx, externalMeetingID)
	if err == nil {
		return true, nil
	}
	if err == meetings.ErrNotFound {
		return false, nil
	}
	return false, err
}

// Pending handles GET /admin/recordings/pending.
func (h *AdminHandler) Pending(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	pending, err := h.recordingsRepo.ListPending(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, err.Error())
		return
	}
	response.OK(c, pending)
}
