// internal/api/v2/tasks.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casetrail/casetrail/internal/investigation"
)

// initTaskRoutes registers task endpoints. Tasks are nested under their
// investigation for creation and listing, addressed directly otherwise.
func (c *Controller) initTaskRoutes() {
	g := c.Group.Group("/investigations/:id/tasks", c.ActorMiddleware())
	g.GET("", c.ListTasks)
	g.POST("", c.CreateTask)

	t := c.Group.Group("/tasks", c.ActorMiddleware())
	t.GET("/:id", c.GetTask)
	t.PUT("/:id", c.UpdateTask)
	t.POST("/:id/status", c.UpdateTaskStatus)
}

// CreateTaskRequest is the POST /investigations/:id/tasks body.
type CreateTaskRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"`
	AssignedTo  string         `json:"assigned_to"`
	DueDate     *time.Time     `json:"due_date"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateTaskRequest is the PUT /tasks/:id body.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
	UpdatedAt   string     `json:"updated_at"`
}

// TaskStatusRequest is the POST /tasks/:id/status body.
type TaskStatusRequest struct {
	Status string `json:"status"`
}

// ListTasks handles GET /investigations/:id/tasks.
func (c *Controller) ListTasks(ctx echo.Context) error {
	tasks, err := c.Investigations.ListTasks(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/:id.
func (c *Controller) GetTask(ctx echo.Context) error {
	task, err := c.Investigations.GetTask(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.RespondOK(ctx, http.StatusOK, task)
}

// CreateTask handles POST /investigations/:id/tasks.
func (c *Controller) CreateTask(ctx echo.Context) error {
	var req CreateTaskRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	task, err := c.Investigations.CreateTask(requestActor(ctx), ctx.Param("id"), &investigation.TaskParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusCreated, task)
}

// UpdateTask handles PUT /tasks/:id.
func (c *Controller) UpdateTask(ctx echo.Context) error {
	var req UpdateTaskRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	token, err := parseVersionToken(req.UpdatedAt)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	task, err := c.Investigations.UpdateTask(requestActor(ctx), ctx.Param("id"), &investigation.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		UpdatedAt:   token,
	})
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, task)
}

// UpdateTaskStatus handles POST /tasks/:id/status.
func (c *Controller) UpdateTaskStatus(ctx echo.Context) error {
	var req TaskStatusRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid request body"))
	}
	task, err := c.Investigations.UpdateTaskStatus(requestActor(ctx), ctx.Param("id"), req.Status)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.flushListCache()
	return c.RespondOK(ctx, http.StatusOK, task)
}
