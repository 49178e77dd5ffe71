package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/repository"
)

// InmateHandler exposes the visitor's authorized inmate listing and the
// admin endpoints for inmates and authorization relations.
type InmateHandler struct {
	Inmates   *repository.InmateRepo
	Relations *repository.RelationRepo
}

func NewInmateHandler(i *repository.InmateRepo, r *repository.RelationRepo) *InmateHandler {
	return &InmateHandler{Inmates: i, Relations: r}
}

type createInmateReq struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type relationReq struct {
	UserID   uint64 `json:"user_id"`
	InmateID uint64 `json:"inmate_id"`
	Relation string `json:"relation"`
}

// MyInmates lists the enabled inmates the caller may book visits with.
func (h *InmateHandler) MyInmates(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	inmates, err := h.Relations.ListForUser(ctx, uid)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"inmates": inmates})
}

// ----- admin -----

// Create registers an inmate record.
func (h *InmateHandler) Create(c echo.Context) error {
	var req createInmateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.FirstName) == "" && strings.TrimSpace(req.LastName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	in := model.Inmate{FirstName: req.FirstName, LastName: req.LastName}

	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Inmates.Create(ctx, &in); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, in)
}

// List returns inmates, optionally filtered with ?search= on the name.
func (h *InmateHandler) List(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	inmates, err := h.Inmates.List(ctx, strings.TrimSpace(c.QueryParam("search")))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"inmates": inmates})
}

// Get loads one inmate record.
func (h *InmateHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	in, err := h.Inmates.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, in)
}

// Authorize links a visitor account to an inmate. Re-authorizing updates
// the relation tag.
func (h *InmateHandler) Authorize(c echo.Context) error {
	var req relationReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.InmateID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/inmate_id required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	if _, err := h.Inmates.GetByID(ctx, req.InmateID); err != nil {
		return writeErr(c, err)
	}
	if err := h.Relations.Upsert(ctx, req.UserID, req.InmateID, model.ParseRelation(req.Relation)); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unauthorize removes the link between a visitor and an inmate. Existing
// visits keep their status; only future bookings are blocked.
func (h *InmateHandler) Unauthorize(c echo.Context) error {
	var req relationReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.InmateID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/inmate_id required"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Relations.Delete(ctx, req.UserID, req.InmateID); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AuthorizedUsers lists the accounts authorized for an inmate.
func (h *InmateHandler) AuthorizedUsers(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	users, err := h.Relations.ListForInmate(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}
