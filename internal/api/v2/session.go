// internal/api/v2/session.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initSessionRoutes registers session bootstrap endpoints.
func (c *Controller) initSessionRoutes() {
	g := c.Group.Group("/session", c.ActorMiddleware())
	g.GET("/status", c.SessionStatus)
	g.POST("/retry", c.RetrySession)
}

// SessionStatus handles GET /session/status.
func (c *Controller) SessionStatus(ctx echo.Context) error {
	if c.Bootstrapper == nil {
		return c.RespondOK(ctx, http.StatusOK, map[string]any{"state": "Ready"})
	}
	return c.RespondOK(ctx, http.StatusOK, c.Bootstrapper.Status())
}

// RetrySession handles POST /session/retry: re-runs the startup race on
// explicit user request after a degraded startup.
func (c *Controller) RetrySession(ctx echo.Context) error {
	if c.Bootstrapper == nil {
		return c.RespondOK(ctx, http.StatusOK, map[string]any{"state": "Ready"})
	}
	state := c.Bootstrapper.Retry(ctx.Request().Context())
	return c.RespondOK(ctx, http.StatusOK, map[string]any{"state": state})
}
