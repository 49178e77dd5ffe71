// Package handler defines the HTTP layer. Handlers bind and validate the
// request, call into services or repositories and translate errors to
// status codes; business rules live below this package.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/visicontrol/visit-scheduler/internal/middleware"
	"github.com/visicontrol/visit-scheduler/internal/repository"
	"github.com/visicontrol/visit-scheduler/internal/schedule"
	"github.com/visicontrol/visit-scheduler/internal/service"
)

// dbTimeout bounds every database round trip made from a handler.
const dbTimeout = 5 * time.Second

// reqContext derives a bounded context from the request.
func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// getUserID extracts the authenticated user id stored by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := c.Get(middleware.CtxUserID).(uint64); ok && id > 0 {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// actorFrom builds the service actor for the current request.
func actorFrom(c echo.Context) (service.Actor, error) {
	id, err := getUserID(c)
	if err != nil {
		return service.Actor{}, err
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return service.Actor{UserID: id, Role: role}, nil
}

// pathID parses the named numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// writeErr maps service and repository errors onto HTTP responses. Unknown
// errors become a generic 500 so internals never leak to clients.
func writeErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot already booked"})
	case errors.Is(err, schedule.ErrInvalidDuration):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid duration"})
	case errors.Is(err, schedule.ErrOutOfWindow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot outside facility hours"})
	case errors.Is(err, schedule.ErrBadTime):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed date or time"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
