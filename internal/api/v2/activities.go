// internal/api/v2/activities.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// initActivityRoutes registers the activity log endpoints. The log is
// append-only; these are read paths.
func (c *Controller) initActivityRoutes() {
	g := c.Group.Group("/investigations/:id/activities", c.ActorMiddleware())
	g.GET("", c.ListActivities)
	g.GET("/replay", c.ReplayActivities)
}

// ListActivities handles GET /investigations/:id/activities in append
// order with limit/offset paging.
func (c *Controller) ListActivities(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	offset, _ := strconv.Atoi(ctx.QueryParam("offset"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := c.Activity.List(ctx.Param("id"), limit, offset)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	total, err := c.Activity.Count(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, map[string]any{
		"activities": entries,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// ReplayActivities handles GET /investigations/:id/activities/replay. It
// folds the full activity log into the investigation state it implies,
// for audit reconciliation against the live rows.
func (c *Controller) ReplayActivities(ctx echo.Context) error {
	state, err := c.Activity.Replay(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, state)
}
