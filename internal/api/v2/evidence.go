// internal/api/v2/evidence.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/evidence"
)

// initEvidenceRoutes registers evidence ledger endpoints. Evidence has no
// update route; items are immutable once recorded.
func (c *Controller) initEvidenceRoutes() {
	g := c.Group.Group("/investigations/:id/evidence", c.ActorMiddleware())
	g.GET("", c.ListEvidence)
	g.POST("", c.RecordEvidence)

	e := c.Group.Group("/evidence", c.ActorMiddleware())
	e.GET("/:id", c.GetEvidence)
	e.GET("/:id/verify", c.VerifyEvidence)
}

// RecordEvidenceRequest is the POST /investigations/:id/evidence body.
// Hash, when supplied, must match the sha256 of Content.
type RecordEvidenceRequest struct {
	TaskID      string         `json:"task_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Source      string         `json:"source"`
	Content     string         `json:"content"`
	Hash        string         `json:"hash"`
	Metadata    map[string]any `json:"metadata"`
}

// ListEvidence handles GET /investigations/:id/evidence with optional
// task_id and type filters.
func (c *Controller) ListEvidence(ctx echo.Context) error {
	filter := &datastore.EvidenceFilter{
		InvestigationID: ctx.Param("id"),
		TaskID:          ctx.QueryParam("task_id"),
		Type:            ctx.QueryParam("type"),
	}
	filter.Limit, _ = strconv.Atoi(ctx.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(ctx.QueryParam("offset"))
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}

	items, err := c.Evidence.List(filter)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, items)
}

// GetEvidence handles GET /evidence/:id.
func (c *Controller) GetEvidence(ctx echo.Context) error {
	item, err := c.Evidence.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, item)
}

// RecordEvidence handles POST /investigations/:id/evidence.
func (c *Controller) RecordEvidence(ctx echo.Context) error {
	var req RecordEvidenceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	item, err := c.Evidence.Record(requestActor(ctx), &evidence.RecordParams{
		InvestigationID: ctx.Param("id"),
		TaskID:          req.TaskID,
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		Source:          req.Source,
		Content:         req.Content,
		Hash:            req.Hash,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusCreated, item)
}

// VerifyEvidence handles GET /evidence/:id/verify. It recomputes the
// stored content's digest and reports whether it still matches.
func (c *Controller) VerifyEvidence(ctx echo.Context) error {
	ok, err := c.Evidence.Verify(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, map[string]any{"verified": ok})
}
