package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/repository"
	"github.com/visicontrol/visit-scheduler/internal/service"
)

// AdminVisitHandler exposes the privileged visit endpoints: full listing,
// status review, hard delete and the manual reminder trigger.
type AdminVisitHandler struct {
	Visits        *service.VisitService
	Notifications *service.NotificationService
}

func NewAdminVisitHandler(v *service.VisitService, n *service.NotificationService) *AdminVisitHandler {
	return &AdminVisitHandler{Visits: v, Notifications: n}
}

type patchStatusReq struct {
	Status string `json:"status"`
}

// List returns visits across all users, with the same query filters as the
// visitor listing plus created_by and inmate_id.
func (h *AdminVisitHandler) List(c echo.Context) error {
	var f repository.Filter
	applyVisitQuery(c, &f)
	if v := c.QueryParam("created_by"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.CreatedBy = &id
		}
	}
	if v := c.QueryParam("inmate_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.InmateID = &id
		}
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	visits, err := h.Visits.List(ctx, f)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"visits": visits})
}

// PatchStatus moves a visit to a new status. Approvals re-check the slot
// for conflicts inside the service.
func (h *AdminVisitHandler) PatchStatus(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req patchStatusReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status required"})
	}
	st, ok := model.ParseStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	v, err := h.Visits.Update(ctx, id, service.UpdateVisitInput{Status: &st}, actor)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete removes a visit permanently.
func (h *AdminVisitHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Visits.Delete(ctx, id); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RunReminders triggers the reminder sweep outside its cron schedule.
func (h *AdminVisitHandler) RunReminders(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	created, err := h.Notifications.RunReminderSweep(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": created})
}
