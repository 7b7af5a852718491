package pipeline

import (
	apphttp "deal_followup_backend/internal/http"

	"github.com/gin-gonic/gin"
)

// Module is the pipeline module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the module around a wired handler.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// RegisterRoutes mounts the run trigger and the records listing.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	run := []gin.HandlerFunc{m.handler.HandleRun}
	if ctx.TriggerAuth != nil {
		run = []gin.HandlerFunc{ctx.TriggerAuth, m.handler.HandleRun}
	}

	for _, g := range ctx.Groups() {
		g.GET("/pipeline/run", run...)
		g.GET("/records", m.handler.HandleListRecords)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
