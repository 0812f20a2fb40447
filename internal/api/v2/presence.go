// internal/api/v2/presence.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initPresenceRoutes registers presence endpoints. Heartbeats are
// deliberately cheap: one upsert, no audit row.
func (c *Controller) initPresenceRoutes() {
	g := c.Group.Group("/presence", c.ActorMiddleware())
	g.GET("", c.ListPresence)
	g.GET("/:userID", c.GetPresence)
	g.POST("/heartbeat", c.Heartbeat)
}

// HeartbeatRequest is the POST /presence/heartbeat body. Supplying an
// investigation_id asserts focus on it and requires membership.
type HeartbeatRequest struct {
	Status          string `json:"status"`
	InvestigationID string `json:"investigation_id"`
	Location        string `json:"location"`
}

// ListPresence handles GET /presence.
func (c *Controller) ListPresence(ctx echo.Context) error {
	rows, err := c.Collaboration.ListPresence()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, rows)
}

// GetPresence handles GET /presence/:userID.
func (c *Controller) GetPresence(ctx echo.Context) error {
	row, err := c.Collaboration.GetPresence(ctx.Param("userID"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, row)
}

// Heartbeat handles POST /presence/heartbeat.
func (c *Controller) Heartbeat(ctx echo.Context) error {
	var req HeartbeatRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	if err := c.Collaboration.Heartbeat(requestActor(ctx), req.Status, req.InvestigationID, req.Location); err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, map[string]any{"acknowledged": true})
}
