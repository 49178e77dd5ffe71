// Package router maps HTTP routes onto handlers and applies the
// authentication and role middleware per group.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/visicontrol/visit-scheduler/internal/handler"
	"github.com/visicontrol/visit-scheduler/internal/middleware"
	"github.com/visicontrol/visit-scheduler/internal/model"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Auth          *handler.AuthHandler
	Visits        *handler.VisitHandler
	AdminVisits   *handler.AdminVisitHandler
	Notifications *handler.NotificationHandler
	Inmates       *handler.InmateHandler
}

// Register wires all routes. Unauthenticated operations live under
// /v1/auth plus the health check; everything else requires a valid access
// token, and /v1/admin additionally requires the ADMIN role.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client, ratePerMin int) {
	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleVisitor, model.RoleAdmin))
	v1.Use(middleware.RateLimit(rdb, ratePerMin, time.Minute))

	v1.GET("/me", h.Auth.Me)
	v1.PUT("/me/notify-email", h.Auth.SetNotifyEmail)

	v1.GET("/visits", h.Visits.List)
	v1.POST("/visits", h.Visits.Create)
	v1.GET("/visits/:id", h.Visits.Get)
	v1.PUT("/visits/:id", h.Visits.Update)
	v1.POST("/visits/:id/cancel", h.Visits.Cancel)

	v1.GET("/my-inmates", h.Inmates.MyInmates)

	v1.GET("/notifications", h.Notifications.List)
	v1.POST("/notifications/read", h.Notifications.MarkRead)
	v1.GET("/notifications/unread-count", h.Notifications.UnreadCount)
	v1.GET("/notifications/stream", h.Notifications.Stream)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))

	admin.GET("/visits", h.AdminVisits.List)
	admin.PATCH("/visits/:id/status", h.AdminVisits.PatchStatus)
	admin.DELETE("/visits/:id", h.AdminVisits.Delete)
	admin.POST("/reminders/run", h.AdminVisits.RunReminders)

	admin.POST("/inmates", h.Inmates.Create)
	admin.GET("/inmates", h.Inmates.List)
	admin.GET("/inmates/:id", h.Inmates.Get)
	admin.GET("/inmates/:id/users", h.Inmates.AuthorizedUsers)
	admin.POST("/relations", h.Inmates.Authorize)
	admin.DELETE("/relations", h.Inmates.Unauthorize)
}
