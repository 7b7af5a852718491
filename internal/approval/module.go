package approval

import (
	apphttp "deal_followup_backend/internal/http"
)

// Module is the approval callback module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the module around an already wired handler.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "approval"
}

// RegisterRoutes mounts the signed callback route. Authentication happens in
// the handler because the signature covers the raw body.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	for _, g := range ctx.Groups() {
		if ctx.CallbackRateLimiter != nil {
			g.POST("/webhooks/approval", ctx.CallbackRateLimiter.RateLimit(), m.handler.HandleCallback)
		} else {
			g.POST("/webhooks/approval", m.handler.HandleCallback)
		}
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
