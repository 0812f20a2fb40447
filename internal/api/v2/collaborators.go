// internal/api/v2/collaborators.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initCollaboratorRoutes registers team membership endpoints.
func (c *Controller) initCollaboratorRoutes() {
	g := c.Group.Group("/investigations/:id/collaborators", c.ActorMiddleware())
	g.GET("", c.ListCollaborators)
	g.POST("", c.JoinInvestigation)
	g.DELETE("/:userID", c.LeaveInvestigation)
	g.PUT("/:userID/role", c.UpdateCollaboratorRole)
}

// JoinRequest is the POST /investigations/:id/collaborators body. An
// empty user_id joins the caller; an empty role picks the default (lead
// for the first member, analyst after).
type JoinRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// RoleRequest is the PUT /investigations/:id/collaborators/:userID/role body.
type RoleRequest struct {
	Role string `json:"role"`
}

// ListCollaborators handles GET /investigations/:id/collaborators.
func (c *Controller) ListCollaborators(ctx echo.Context) error {
	members, err := c.Collaboration.ListMembers(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, members)
}

// JoinInvestigation handles POST /investigations/:id/collaborators.
func (c *Controller) JoinInvestigation(ctx echo.Context) error {
	var req JoinRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	member, err := c.Collaboration.Join(requestActor(ctx), ctx.Param("id"), req.UserID, req.Role)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusCreated, member)
}

// LeaveInvestigation handles DELETE /investigations/:id/collaborators/:userID.
func (c *Controller) LeaveInvestigation(ctx echo.Context) error {
	if err := c.Collaboration.Leave(requestActor(ctx), ctx.Param("id"), ctx.Param("userID")); err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, map[string]any{"removed": true})
}

// UpdateCollaboratorRole handles PUT /investigations/:id/collaborators/:userID/role.
func (c *Controller) UpdateCollaboratorRole(ctx echo.Context) error {
	var req RoleRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	if err := c.Collaboration.UpdateRole(requestActor(ctx), ctx.Param("id"), ctx.Param("userID"), req.Role); err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, map[string]any{"updated": true})
}
