// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"deal_followup_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router context.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// Root is the unprefixed group ("/").
	Root *gin.RouterGroup
	// API is the "/api" group used by the dashboard.
	API *gin.RouterGroup
	// TriggerAuth guards routes that start a pipeline run. It lets every
	// request through when no trigger secret is configured.
	TriggerAuth gin.HandlerFunc
	// CallbackRateLimiter is the per-IP limiter for inbound callbacks.
	CallbackRateLimiter *httpkit.IPRateLimiter
}

// Groups returns every group a route should be mounted on.
func (rc *RouterContext) Groups() []*gin.RouterGroup {
	groups := make([]*gin.RouterGroup, 0, 2)
	if rc.Root != nil {
		groups = append(groups, rc.Root)
	}
	if rc.API != nil {
		groups = append(groups, rc.API)
	}
	return groups
}
