// internal/api/v2/api.go
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/casetrail/casetrail/internal/activity"
	"github.com/casetrail/casetrail/internal/collaboration"
	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/evidence"
	"github.com/casetrail/casetrail/internal/investigation"
	"github.com/casetrail/casetrail/internal/logging"
	"github.com/casetrail/casetrail/internal/observability"
	"github.com/casetrail/casetrail/internal/session"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	Investigations *investigation.Service
	Evidence       *evidence.Ledger
	Activity       *activity.Log
	Collaboration  *collaboration.Tracker
	Bootstrapper   *session.Bootstrapper

	listCache      *cache.Cache // caches hot list queries, flushed on mutation
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	metrics        *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ApiResponse is the uniform envelope every endpoint returns.
type ApiResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	services Services, metrics *observability.Metrics) *Controller {

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		Echo:           e,
		DS:             ds,
		Settings:       settings,
		Investigations: services.Investigations,
		Evidence:       services.Evidence,
		Activity:       services.Activity,
		Collaboration:  services.Collaboration,
		Bootstrapper:   services.Bootstrapper,
		listCache:      cache.New(30*time.Second, 5*time.Minute),
		metrics:        metrics,
		ctx:            ctx,
		cancel:         cancel,
	}

	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)
	if settings.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	}
	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", c.apiLevelVar)
	if err != nil {
		c.apiLogger = logging.ForService("api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())

	c.initRoutes()
	return c
}

// Services bundles the domain services the controller fronts.
type Services struct {
	Investigations *investigation.Service
	Evidence       *evidence.Ledger
	Activity       *activity.Log
	Collaboration  *collaboration.Tracker
	Bootstrapper   *session.Bootstrapper
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initInvestigationRoutes()
	c.initTaskRoutes()
	c.initEvidenceRoutes()
	c.initActivityRoutes()
	c.initCollaboratorRoutes()
	c.initPresenceRoutes()
	c.initSessionRoutes()
}

// LoggingMiddleware creates a middleware function that logs API requests.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)
			return err
		}
	}
}

// HealthCheck reports API and database health.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	dbStatus := "connected"
	if _, err := c.DS.ListPresence(); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	if c.Bootstrapper != nil {
		response["session_state"] = c.Bootstrapper.Status().State
	}
	return ctx.JSON(http.StatusOK, response)
}

// Shutdown performs cleanup of all resources used by the API controller.
func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.apiLogger.Warn("closing API log file failed", "error", err)
		}
	}
	if c.listCache != nil {
		c.listCache.Flush()
	}
}

// RespondOK writes the success envelope with the given payload.
func (c *Controller) RespondOK(ctx echo.Context, code int, data any) error {
	return ctx.JSON(code, &ApiResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleError maps an error's category to an HTTP status and writes the
// failure envelope. Internal detail is logged, not leaked.
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	code := statusForCategory(errors.CategoryOf(err))

	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"error", err.Error(),
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "internal error"
	}
	return ctx.JSON(code, &ApiResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func statusForCategory(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryIntegrityMismatch:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryPermissionDenied:
		return http.StatusForbidden
	case errors.CategoryInvalidTransition, errors.CategoryInvestigationArchived,
		errors.CategoryAlreadyMember, errors.CategoryNotAMember, errors.CategoryState:
		return http.StatusConflict
	case errors.CategoryConcurrentModification:
		return http.StatusPreconditionFailed
	case errors.CategoryStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// flushListCache drops cached list responses after any mutation.
func (c *Controller) flushListCache() {
	if c.listCache != nil {
		c.listCache.Flush()
	}
}
