// internal/api/v2/investigations.go
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/investigation"
)

// initInvestigationRoutes registers investigation lifecycle endpoints.
func (c *Controller) initInvestigationRoutes() {
	g := c.Group.Group("/investigations", c.ActorMiddleware())
	g.GET("", c.ListInvestigations)
	g.POST("", c.CreateInvestigation)
	g.GET("/:id", c.GetInvestigation)
	g.PUT("/:id", c.UpdateInvestigation)
	g.DELETE("/:id", c.DeleteInvestigation)
	g.POST("/:id/transition", c.TransitionInvestigation)
}

// CreateInvestigationRequest is the POST /investigations body.
type CreateInvestigationRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateInvestigationRequest is the PUT /investigations/:id body. Nil
// fields are left unchanged; UpdatedAt is the version token from the
// caller's last read.
type UpdateInvestigationRequest struct {
	Title            *string        `json:"title"`
	Description      *string        `json:"description"`
	Priority         *string        `json:"priority"`
	LeadInvestigator *string        `json:"lead_investigator"`
	Metadata         map[string]any `json:"metadata"`
	UpdatedAt        string         `json:"updated_at"`
}

// TransitionRequest is the POST /investigations/:id/transition body.
type TransitionRequest struct {
	Status string `json:"status"`
}

// ListInvestigations handles GET /investigations with optional status,
// priority, user_id, limit and offset filters. Results are cached briefly;
// any mutation flushes the cache.
func (c *Controller) ListInvestigations(ctx echo.Context) error {
	filter := &datastore.InvestigationFilter{
		Status:   ctx.QueryParam("status"),
		Priority: ctx.QueryParam("priority"),
		UserID:   ctx.QueryParam("user_id"),
	}
	filter.Limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(ctx.QueryParam("offset"))
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}

	cacheKey := fmt.Sprintf("investigations:%s:%s:%s:%d:%d",
		filter.Status, filter.Priority, filter.UserID, filter.Limit, filter.Offset)
	if cached, found := c.listCache.Get(cacheKey); found {
		return c.RespondOK(ctx, http.StatusOK, cached)
	}

	list, err := c.Investigations.List(filter)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.listCache.SetDefault(cacheKey, list)
	return c.RespondOK(ctx, http.StatusOK, list)
}

// GetInvestigation handles GET /investigations/:id.
func (c *Controller) GetInvestigation(ctx echo.Context) error {
	inv, err := c.Investigations.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, inv)
}

// CreateInvestigation handles POST /investigations.
func (c *Controller) CreateInvestigation(ctx echo.Context) error {
	var req CreateInvestigationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	inv, err := c.Investigations.Create(requestActor(ctx), req.Title, req.Description, req.Priority)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusCreated, inv)
}

// UpdateInvestigation handles PUT /investigations/:id.
func (c *Controller) UpdateInvestigation(ctx echo.Context) error {
	var req UpdateInvestigationRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	token, err := parseVersionToken(req.UpdatedAt)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	inv, err := c.Investigations.Update(requestActor(ctx), ctx.Param("id"), &investigation.UpdatePatch{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		LeadInvestigator: req.LeadInvestigator,
		Metadata:         req.Metadata,
		UpdatedAt:        token,
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, inv)
}

// DeleteInvestigation handles DELETE /investigations/:id. Lead only;
// cascades to tasks, evidence, activity and collaborators.
func (c *Controller) DeleteInvestigation(ctx echo.Context) error {
	if err := c.Investigations.Delete(requestActor(ctx), ctx.Param("id")); err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, map[string]any{"deleted": true})
}

// TransitionInvestigation handles POST /investigations/:id/transition.
func (c *Controller) TransitionInvestigation(ctx echo.Context) error {
	var req TransitionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	inv, err := c.Investigations.Transition(requestActor(ctx), ctx.Param("id"), req.Status)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, inv)
}
