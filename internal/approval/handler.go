package approval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/httpkit"
	"deal_followup_backend/platform/logger"
	"deal_followup_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	HeaderTimestamp = "X-Signature-Timestamp"
	HeaderSignature = "X-Signature"

	ActionApprove = "approve_send"
	ActionDismiss = "dismiss"

	maxCallbackBytes = 1 << 20

	msgUnauthorized   = "invalid signature"
	msgInvalidBody    = "invalid request body"
	msgMissingPayload = "missing payload"
	msgInvalidPayload = "invalid payload"
	msgUnknownAction  = "unknown action"
	msgInternal       = "internal error"
)

// CallbackPayload is the JSON document carried in the form field "payload".
type CallbackPayload struct {
	Type    string           `json:"type"`
	Actions []CallbackAction `json:"actions" validate:"min=1,dive"`
	User    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// CallbackAction is a single button press.
type CallbackAction struct {
	ActionID string `json:"action_id" validate:"required"`
	Value    string `json:"value" validate:"required"`
}

// CallbackResponse is returned for a processed action.
type CallbackResponse struct {
	OK       bool   `json:"ok"`
	Action   string `json:"action"`
	DealName string `json:"dealName"`
}

// Decider is the part of the Executor the handler needs.
type Decider interface {
	Approve(ctx context.Context, id string) (followup.Record, error)
	Dismiss(ctx context.Context, id string) (followup.Record, error)
}

// Handler serves the approval callback.
type Handler struct {
	decider  Decider
	verifier *Verifier
	replay   ReplayGuard
	val      *validator.Validator
	log      *logger.Logger
}

// NewHandler creates the callback handler. replay may be nil.
func NewHandler(decider Decider, verifier *Verifier, replay ReplayGuard, val *validator.Validator, log *logger.Logger) *Handler {
	if replay == nil {
		replay = NoopReplayGuard{}
	}
	return &Handler{decider: decider, verifier: verifier, replay: replay, val: val, log: log}
}

// HandleCallback authenticates the raw body before anything is parsed, then
// dispatches the first action.
// POST /webhooks/approval
func (h *Handler) HandleCallback(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log.WithContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBytes))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidBody, nil)
		return
	}

	signature := c.GetHeader(HeaderSignature)
	if err := h.verifier.Check(body, c.GetHeader(HeaderTimestamp), signature); err != nil {
		log.CallbackRejected(err.Error(), c.ClientIP())
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	fresh, err := h.replay.Claim(ctx, signature, ReplayWindow)
	if err != nil {
		log.CollaboratorError("redis", "claim_signature", err)
		httpkit.Error(c, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	if !fresh {
		log.CallbackRejected("replayed signature", c.ClientIP())
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	action, ok := h.parseAction(c, body)
	if !ok {
		return
	}

	var (
		record  followup.Record
		outcome string
	)
	switch action.ActionID {
	case ActionApprove:
		record, err = h.decider.Approve(ctx, action.Value)
		outcome = string(followup.StatusSent)
	case ActionDismiss:
		record, err = h.decider.Dismiss(ctx, action.Value)
		outcome = string(followup.StatusDismissed)
	default:
		httpkit.Error(c, http.StatusBadRequest, msgUnknownAction, nil)
		return
	}
	if err != nil && serverFault(err) {
		// The record is still pending; let the platform's retry through.
		if relErr := h.replay.Release(context.WithoutCancel(ctx), signature); relErr != nil {
			log.CollaboratorError("redis", "release_signature", relErr)
		}
	}
	if httpkit.HandleError(c, err) {
		log.Info("approval callback failed", "action", action.ActionID, "followUpId", action.Value, "error", err)
		return
	}

	httpkit.OK(c, CallbackResponse{OK: true, Action: outcome, DealName: record.DealName})
}

func (h *Handler) parseAction(c *gin.Context, body []byte) (CallbackAction, bool) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidBody, nil)
		return CallbackAction{}, false
	}
	raw := form.Get("payload")
	if raw == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingPayload, nil)
		return CallbackAction{}, false
	}

	var payload CallbackPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidPayload, nil)
		return CallbackAction{}, false
	}
	if err := h.val.Struct(payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidPayload, validator.Describe(err))
		return CallbackAction{}, false
	}
	return payload.Actions[0], true
}

// serverFault reports whether err is answered with a 5xx.
func serverFault(err error) bool {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus() >= http.StatusInternalServerError
	}
	return true
}
