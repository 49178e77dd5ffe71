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

// VisitHandler exposes the visitor-facing booking endpoints.
type VisitHandler struct {
	Visits *service.VisitService
}

func NewVisitHandler(v *service.VisitService) *VisitHandler {
	return &VisitHandler{Visits: v}
}

// ----- DTOs -----

type createVisitReq struct {
	VisitorName     string  `json:"visitor_name"`
	InmateID        *uint64 `json:"inmate_id"`
	InmateName      string  `json:"inmate_name"`
	VisitDate       string  `json:"visit_date"`
	VisitHour       string  `json:"visit_hour"`
	DurationMinutes int     `json:"duration_minutes"`
	Notes           *string `json:"notes"`
	Status          string  `json:"status"` // honored for admins only
}

type updateVisitReq struct {
	VisitorName     *string `json:"visitor_name"`
	InmateID        *uint64 `json:"inmate_id"`
	InmateName      *string `json:"inmate_name"`
	VisitDate       *string `json:"visit_date"`
	VisitHour       *string `json:"visit_hour"`
	DurationMinutes *int    `json:"duration_minutes"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
}

// List returns the caller's own visits, newest first. Admins listing all
// visits use the admin endpoint instead. Optional query parameters: status,
// from, to, limit.
func (h *VisitHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	f := repository.Filter{CreatedBy: &uid}
	applyVisitQuery(c, &f)

	ctx, cancel := reqContext(c)
	defer cancel()
	visits, err := h.Visits.List(ctx, f)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"visits": visits})
}

// Get returns one visit. Owners see their own; admins see any.
func (h *VisitHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	v, err := h.Visits.Get(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	if !actor.Privileged() && (v.CreatedBy == nil || *v.CreatedBy != actor.UserID) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, v)
}

// Create books a visit for the caller.
func (h *VisitHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createVisitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	in := service.CreateVisitInput{
		VisitorName:     req.VisitorName,
		InmateID:        req.InmateID,
		InmateName:      req.InmateName,
		VisitDate:       req.VisitDate,
		VisitHour:       req.VisitHour,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		CreatedBy:       &actor.UserID,
	}
	if actor.Privileged() && req.Status != "" {
		st, ok := model.ParseStatus(req.Status)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
		in.Status = &st
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	v, err := h.Visits.Create(ctx, in, actor)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// Update applies a partial patch to a visit. Ownership and allowed field
// rules are enforced by the service.
func (h *VisitHandler) Update(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateVisitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	patch := service.UpdateVisitInput{
		VisitorName:     req.VisitorName,
		InmateID:        req.InmateID,
		InmateName:      req.InmateName,
		VisitDate:       req.VisitDate,
		VisitHour:       req.VisitHour,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if req.Status != nil {
		st, ok := model.ParseStatus(*req.Status)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
		patch.Status = &st
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	v, err := h.Visits.Update(ctx, id, patch, actor)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Cancel soft-cancels the caller's own upcoming visit. Ineligible requests
// return 200 with ok=false rather than distinguishing the reason.
func (h *VisitHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	res, err := h.Visits.Cancel(ctx, uid, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// applyVisitQuery copies the common list query parameters onto the filter.
func applyVisitQuery(c echo.Context, f *repository.Filter) {
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		if st, ok := model.ParseStatus(raw); ok {
			f.Status = st
		}
	}
	f.Date = strings.TrimSpace(c.QueryParam("date"))
	f.FromDate = strings.TrimSpace(c.QueryParam("from"))
	f.ToDate = strings.TrimSpace(c.QueryParam("to"))
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
}
