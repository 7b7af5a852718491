package pipeline

import (
	"context"
	"errors"
	"net/http"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/httpkit"
	"deal_followup_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Runner is the part of the Orchestrator the handler needs.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// RunSummary is one record in the run response.
type RunSummary struct {
	ID       string           `json:"id"`
	DealName string           `json:"dealName"`
	Urgency  followup.Urgency `json:"urgency"`
	Contact  string           `json:"contact"`
	Status   followup.Status  `json:"status"`
}

// RunResponse is the body of a successful run.
type RunResponse struct {
	Success          bool         `json:"success"`
	StaleDealsFound  int          `json:"staleDealsFound"`
	FollowUpsCreated int          `json:"followUpsCreated"`
	Records          []RunSummary `json:"records"`
}

// FailureResponse is the body of a failed run.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RecordsResponse is the body of the records listing.
type RecordsResponse struct {
	Success bool              `json:"success"`
	Records []followup.Record `json:"records"`
}

// Handler serves the pipeline trigger and the records listing.
type Handler struct {
	runner Runner
	store  store.Store
	log    *logger.Logger
}

// NewHandler creates a pipeline handler.
func NewHandler(runner Runner, s store.Store, log *logger.Logger) *Handler {
	return &Handler{runner: runner, store: s, log: log}
}

// HandleRun triggers one run. The run outlives a disconnecting caller so
// notification never stops between posting a card and storing its record.
// GET /pipeline/run
func (h *Handler) HandleRun(c *gin.Context) {
	result, err := h.runner.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRunInProgress) {
			status = http.StatusConflict
		}
		h.log.WithContext(c.Request.Context()).HTTPError(c.Request.Method, c.Request.URL.Path, status, err, c.ClientIP())
		httpkit.JSON(c, status, FailureResponse{Success: false, Error: errorMessage(err)})
		return
	}

	summaries := make([]RunSummary, 0, len(result.Records))
	for _, r := range result.Records {
		summaries = append(summaries, RunSummary{
			ID:       r.ID,
			DealName: r.DealName,
			Urgency:  r.UrgencyScore,
			Contact:  r.ContactEmail,
			Status:   r.Status,
		})
	}

	httpkit.OK(c, RunResponse{
		Success:          true,
		StaleDealsFound:  result.StaleDealsFound,
		FollowUpsCreated: result.FollowUpsCreated,
		Records:          summaries,
	})
}

// HandleListRecords returns every record in insertion order.
// GET /records
func (h *Handler) HandleListRecords(c *gin.Context) {
	records, err := h.store.GetAll(c.Request.Context())
	if err != nil {
		h.log.WithContext(c.Request.Context()).DatabaseError("list_follow_ups", err)
		httpkit.JSON(c, http.StatusInternalServerError, FailureResponse{Success: false, Error: "failed to load records"})
		return
	}
	if records == nil {
		records = []followup.Record{}
	}
	httpkit.OK(c, RecordsResponse{Success: true, Records: records})
}

// errorMessage prefers the typed message and its cause.
func errorMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Message + ": " + appErr.Err.Error()
	}
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
