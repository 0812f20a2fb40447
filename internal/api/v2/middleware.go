// internal/api/v2/middleware.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casetrail/casetrail/internal/auth"
)

const actorContextKey = "actor"

// ActorMiddleware reads the verified identity headers set by the fronting
// proxy and stores an auth.Actor on the request context. Requests without
// an identity are rejected; the engine itself performs no credential
// verification.
func (c *Controller) ActorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			userID := strings.TrimSpace(req.Header.Get("X-User-ID"))
			if userID == "" {
				return ctx.JSON(http.StatusUnauthorized, &ApiResponse{
					Success:   false,
					Error:     "missing identity",
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
			}

			actor := auth.Actor{
				UserID: userID,
				Role:   strings.TrimSpace(req.Header.Get("X-User-Role")),
			}
			if perms := strings.TrimSpace(req.Header.Get("X-User-Permissions")); perms != "" {
				for _, p := range strings.Split(perms, ",") {
					if p = strings.TrimSpace(p); p != "" {
						actor.Permissions = append(actor.Permissions, p)
					}
				}
			}
			ctx.Set(actorContextKey, actor)
			return next(ctx)
		}
	}
}

// requestActor returns the actor placed on the context by ActorMiddleware.
func requestActor(ctx echo.Context) auth.Actor {
	actor, _ := ctx.Get(actorContextKey).(auth.Actor)
	return actor
}
