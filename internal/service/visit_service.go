// Package service implements the visit scheduling engine: slot validation,
// authorization gating, overlap detection and the status state machine, plus
// the notification dispatch that reacts to lifecycle transitions. Handlers
// and the reminder scheduler are thin callers into this package.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/repository"
	"github.com/visicontrol/visit-scheduler/internal/schedule"
)

// ErrInvalidInput is returned for requests missing required fields or
// carrying values that cannot be parsed.
var ErrInvalidInput = errors.New("invalid input")

// VisitStore is the persistence surface the lifecycle needs. It is
// satisfied by *repository.VisitRepo and by the in-memory fake used in
// tests.
type VisitStore interface {
	GetByID(ctx context.Context, id uint64) (model.Visit, error)
	List(ctx context.Context, f repository.Filter) ([]model.Visit, error)
	ListForConflict(ctx context.Context, inmateID uint64, date string, excludeID uint64) ([]model.Visit, error)
	WithSlotLock(ctx context.Context, inmateID uint64, date string, fn func(ctx context.Context) error) error
	Create(ctx context.Context, v *model.Visit) error
	Update(ctx context.Context, v *model.Visit) error
	CancelOwned(ctx context.Context, ownerID, visitID uint64) (model.Visit, bool, error)
	Delete(ctx context.Context, id uint64) error
}

// InmateStore resolves inmate display names.
type InmateStore interface {
	DisplayName(ctx context.Context, id uint64) (string, error)
}

// RelationStore answers whether a visitor is authorized for an inmate.
type RelationStore interface {
	Exists(ctx context.Context, userID, inmateID uint64) (bool, error)
}

// Dispatcher receives lifecycle events. Implementations must be
// fire-and-forget: they log their own failures and never propagate them, so
// a lost notification can never fail or roll back the visit mutation that
// triggered it.
type Dispatcher interface {
	VisitCreated(ctx context.Context, v model.Visit)
	VisitApproved(ctx context.Context, v model.Visit, old model.Status)
	VisitRejected(ctx context.Context, v model.Visit, old model.Status)
	VisitRescheduled(ctx context.Context, v model.Visit, oldDate, oldHour string, oldInmateID *uint64)
	VisitCancelled(ctx context.Context, v model.Visit)
}

// Actor identifies the account performing an operation. Admins are the
// privileged actors: they bypass the authorization gate and the owner-only
// edit rules.
type Actor struct {
	UserID uint64
	Role   string
}

// Privileged reports whether the actor may bypass ordinary restrictions.
func (a Actor) Privileged() bool { return a.Role == model.RoleAdmin }

// VisitService composes the scheduling rules over the stores.
type VisitService struct {
	visits     VisitStore
	inmates    InmateStore
	relations  RelationStore
	dispatcher Dispatcher
}

// NewVisitService wires the lifecycle engine. dispatcher may be nil, in
// which case transitions emit nothing.
func NewVisitService(visits VisitStore, inmates InmateStore, relations RelationStore, dispatcher Dispatcher) *VisitService {
	return &VisitService{
		visits:     visits,
		inmates:    inmates,
		relations:  relations,
		dispatcher: dispatcher,
	}
}

// CreateVisitInput carries a booking request. Status is honored only for
// privileged actors; visitor requests are always created PENDING.
type CreateVisitInput struct {
	VisitorName     string
	InmateID        *uint64
	InmateName      string
	VisitDate       string
	VisitHour       string
	DurationMinutes int
	Notes           *string
	Status          *model.Status
	CreatedBy       *uint64
}

// Create books a visit: validates the slot, gates on the authorization
// relation, checks overlaps under the per-(inmate, date) lock and persists
// the row. A VISIT_CREATED notification is emitted for owned visits.
func (s *VisitService) Create(ctx context.Context, in CreateVisitInput, actor Actor) (model.Visit, error) {
	in.VisitDate = strings.TrimSpace(in.VisitDate)
	in.VisitHour = strings.TrimSpace(in.VisitHour)
	if in.VisitDate == "" || in.VisitHour == "" {
		return model.Visit{}, ErrInvalidInput
	}
	if _, err := schedule.ParseDate(in.VisitDate); err != nil {
		return model.Visit{}, err
	}
	startMin, err := schedule.ParseHour(in.VisitHour)
	if err != nil {
		return model.Visit{}, err
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = schedule.DefaultDurationMinutes
	}
	if err := schedule.ValidateSlot(startMin, duration); err != nil {
		return model.Visit{}, err
	}

	visitorName := strings.TrimSpace(in.VisitorName)
	if visitorName == "" {
		visitorName = "Visitante"
	}
	inmateName := strings.TrimSpace(in.InmateName)
	if in.InmateID != nil && inmateName == "" {
		inmateName, err = s.inmates.DisplayName(ctx, *in.InmateID)
		if err != nil {
			return model.Visit{}, err
		}
	}

	if !actor.Privileged() && in.CreatedBy != nil && in.InmateID != nil {
		ok, err := s.relations.Exists(ctx, *in.CreatedBy, *in.InmateID)
		if err != nil {
			return model.Visit{}, err
		}
		if !ok {
			return model.Visit{}, repository.ErrForbidden
		}
	}

	status := model.StatusPending
	if actor.Privileged() && in.Status != nil {
		status = *in.Status
	}

	v := model.Visit{
		VisitorName:     visitorName,
		InmateID:        in.InmateID,
		InmateName:      inmateName,
		VisitDate:       in.VisitDate,
		VisitHour:       schedule.FormatHour(startMin) + ":00",
		DurationMinutes: duration,
		Status:          status,
		Notes:           in.Notes,
		CreatedBy:       in.CreatedBy,
	}

	if in.InmateID == nil {
		// Without an inmate there is nothing to conflict against; the
		// overlap check is skipped entirely.
		if err := s.visits.Create(ctx, &v); err != nil {
			return model.Visit{}, err
		}
	} else {
		err = s.visits.WithSlotLock(ctx, *in.InmateID, in.VisitDate, func(ctx context.Context) error {
			existing, err := s.visits.ListForConflict(ctx, *in.InmateID, in.VisitDate, 0)
			if err != nil {
				return err
			}
			if schedule.HasConflict(schedule.NewInterval(startMin, duration), bookedIntervals(existing)) {
				return repository.ErrConflict
			}
			return s.visits.Create(ctx, &v)
		})
		if err != nil {
			return model.Visit{}, err
		}
	}

	if v.CreatedBy != nil && s.dispatcher != nil {
		s.dispatcher.VisitCreated(ctx, v)
	}
	return v, nil
}

// List returns visits matching the filter.
func (s *VisitService) List(ctx context.Context, f repository.Filter) ([]model.Visit, error) {
	return s.visits.List(ctx, f)
}

// Get loads one visit.
func (s *VisitService) Get(ctx context.Context, id uint64) (model.Visit, error) {
	return s.visits.GetByID(ctx, id)
}

// UpdateVisitInput is a partial patch; nil fields keep their current value.
type UpdateVisitInput struct {
	VisitorName     *string
	InmateID        *uint64
	InmateName      *string
	VisitDate       *string
	VisitHour       *string
	DurationMinutes *int
	Status          *model.Status
	Notes           *string
}

// Update merges a patch over the stored visit, re-runs validation and
// overlap detection on the merged values and persists. Non-privileged
// actors may only edit their own PENDING visits, may only touch the
// schedule fields and notes, and may only move status to CANCELLED. Status
// transitions emit at most one notification; pure reschedules emit
// VISIT_UPDATED.
func (s *VisitService) Update(ctx context.Context, id uint64, patch UpdateVisitInput, actor Actor) (*model.Visit, error) {
	cur, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.Privileged() {
		if cur.CreatedBy == nil || *cur.CreatedBy != actor.UserID {
			return nil, repository.ErrForbidden
		}
		if cur.Status != model.StatusPending {
			return nil, repository.ErrForbidden
		}
		// Owners cannot reassign the visit or rename the visitor.
		patch.VisitorName = nil
		patch.InmateID = nil
		patch.InmateName = nil
	}
	if patch.Status != nil && !model.CanTransition(cur.Status, *patch.Status, actor.Privileged()) {
		return nil, repository.ErrForbidden
	}

	merged := cur
	if patch.VisitorName != nil {
		merged.VisitorName = strings.TrimSpace(*patch.VisitorName)
	}
	if patch.Notes != nil {
		merged.Notes = patch.Notes
	}
	if patch.VisitDate != nil {
		merged.VisitDate = strings.TrimSpace(*patch.VisitDate)
	}
	if patch.VisitHour != nil {
		merged.VisitHour = strings.TrimSpace(*patch.VisitHour)
	}
	if patch.DurationMinutes != nil {
		merged.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	inmateChanged := false
	if patch.InmateID != nil && (cur.InmateID == nil || *cur.InmateID != *patch.InmateID) {
		inmateChanged = true
		merged.InmateID = patch.InmateID
		if patch.InmateName != nil && strings.TrimSpace(*patch.InmateName) != "" {
			merged.InmateName = strings.TrimSpace(*patch.InmateName)
		} else {
			name, err := s.inmates.DisplayName(ctx, *patch.InmateID)
			if err != nil {
				return nil, err
			}
			merged.InmateName = name
		}
	} else if patch.InmateName != nil {
		merged.InmateName = strings.TrimSpace(*patch.InmateName)
	}

	if _, err := schedule.ParseDate(merged.VisitDate); err != nil {
		return nil, err
	}
	startMin, err := schedule.ParseHour(merged.VisitHour)
	if err != nil {
		return nil, err
	}
	if err := schedule.ValidateSlot(startMin, merged.DurationMinutes); err != nil {
		return nil, err
	}
	merged.VisitHour = schedule.FormatHour(startMin) + ":00"

	// The gate runs against the visit's owner, not the editing actor:
	// reassignment must not smuggle a booking past the owner's own
	// authorizations.
	if inmateChanged && !actor.Privileged() && cur.CreatedBy != nil {
		ok, err := s.relations.Exists(ctx, *cur.CreatedBy, *merged.InmateID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, repository.ErrForbidden
		}
	}

	persist := func(ctx context.Context) error { return s.visits.Update(ctx, &merged) }
	if merged.Status.Live() && merged.InmateID != nil {
		err = s.visits.WithSlotLock(ctx, *merged.InmateID, merged.VisitDate, func(ctx context.Context) error {
			existing, err := s.visits.ListForConflict(ctx, *merged.InmateID, merged.VisitDate, merged.ID)
			if err != nil {
				return err
			}
			if schedule.HasConflict(schedule.NewInterval(startMin, merged.DurationMinutes), bookedIntervals(existing)) {
				return repository.ErrConflict
			}
			return persist(ctx)
		})
	} else {
		err = persist(ctx)
	}
	if err != nil {
		return nil, err
	}

	if cur.CreatedBy != nil && s.dispatcher != nil {
		statusChanged := cur.Status != merged.Status
		switch {
		case statusChanged && merged.Status == model.StatusApproved:
			s.dispatcher.VisitApproved(ctx, merged, cur.Status)
		case statusChanged && merged.Status == model.StatusRejected:
			s.dispatcher.VisitRejected(ctx, merged, cur.Status)
		case !statusChanged && (cur.VisitDate != merged.VisitDate ||
			cur.VisitHour != merged.VisitHour || inmateChanged):
			s.dispatcher.VisitRescheduled(ctx, merged, cur.VisitDate, cur.VisitHour, cur.InmateID)
		}
	}
	return &merged, nil
}

// CancelResult is the outcome of an owner cancellation. Failure reasons
// (missing, not owned, already past, already terminal) are deliberately
// collapsed into one message.
type CancelResult struct {
	OK      bool         `json:"ok"`
	Visit   *model.Visit `json:"visit,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Cancel soft-cancels the owner's own upcoming visit. The eligibility check
// and the write are one conditional UPDATE in the store.
func (s *VisitService) Cancel(ctx context.Context, ownerID, visitID uint64) (CancelResult, error) {
	v, ok, err := s.visits.CancelOwned(ctx, ownerID, visitID)
	if err != nil {
		return CancelResult{}, err
	}
	if !ok {
		return CancelResult{OK: false, Message: "La visita no se puede cancelar"}, nil
	}
	if v.CreatedBy != nil && s.dispatcher != nil {
		s.dispatcher.VisitCancelled(ctx, v)
	}
	return CancelResult{OK: true, Visit: &v}, nil
}

// Delete removes a visit permanently. Callers must ensure the actor is
// privileged; no notification is emitted.
func (s *VisitService) Delete(ctx context.Context, id uint64) error {
	return s.visits.Delete(ctx, id)
}

func bookedIntervals(visits []model.Visit) []schedule.Interval {
	out := make([]schedule.Interval, 0, len(visits))
	for _, v := range visits {
		start, err := schedule.ParseHour(v.VisitHour)
		if err != nil {
			continue
		}
		out = append(out, schedule.NewInterval(start, v.DurationMinutes))
	}
	return out
}
