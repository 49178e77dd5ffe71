package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/repository"
	"github.com/visicontrol/visit-scheduler/internal/schedule"
)

// ----- fakes -----

type fakeVisitStore struct {
	visits    map[uint64]model.Visit
	nextID    uint64
	lockCalls int
	now       time.Time
}

func newFakeVisitStore() *fakeVisitStore {
	return &fakeVisitStore{
		visits: make(map[uint64]model.Visit),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeVisitStore) GetByID(_ context.Context, id uint64) (model.Visit, error) {
	v, ok := f.visits[id]
	if !ok {
		return model.Visit{}, repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeVisitStore) List(_ context.Context, fl repository.Filter) ([]model.Visit, error) {
	out := make([]model.Visit, 0)
	for _, v := range f.visits {
		if fl.CreatedBy != nil && (v.CreatedBy == nil || *v.CreatedBy != *fl.CreatedBy) {
			continue
		}
		if fl.Status != "" && v.Status != fl.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeVisitStore) ListForConflict(_ context.Context, inmateID uint64, date string, excludeID uint64) ([]model.Visit, error) {
	out := make([]model.Visit, 0)
	for _, v := range f.visits {
		if v.InmateID == nil || *v.InmateID != inmateID || v.VisitDate != date {
			continue
		}
		if !v.Status.Live() || v.ID == excludeID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeVisitStore) WithSlotLock(ctx context.Context, _ uint64, _ string, fn func(ctx context.Context) error) error {
	f.lockCalls++
	return fn(ctx)
}

func (f *fakeVisitStore) Create(_ context.Context, v *model.Visit) error {
	f.nextID++
	v.ID = f.nextID
	f.visits[v.ID] = *v
	return nil
}

func (f *fakeVisitStore) Update(_ context.Context, v *model.Visit) error {
	if _, ok := f.visits[v.ID]; !ok {
		return repository.ErrNotFound
	}
	f.visits[v.ID] = *v
	return nil
}

func (f *fakeVisitStore) CancelOwned(_ context.Context, ownerID, visitID uint64) (model.Visit, bool, error) {
	v, ok := f.visits[visitID]
	if !ok || v.CreatedBy == nil || *v.CreatedBy != ownerID {
		return model.Visit{}, false, nil
	}
	if !v.Status.Live() || !schedule.SameOrAfter(v.VisitDate, f.now) {
		return model.Visit{}, false, nil
	}
	v.Status = model.StatusCancelled
	f.visits[visitID] = v
	return v, true, nil
}

func (f *fakeVisitStore) Delete(_ context.Context, id uint64) error {
	if _, ok := f.visits[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.visits, id)
	return nil
}

type fakeInmateStore struct{ names map[uint64]string }

func (f *fakeInmateStore) DisplayName(_ context.Context, id uint64) (string, error) {
	if name, ok := f.names[id]; ok {
		return name, nil
	}
	return "", repository.ErrNotFound
}

type fakeRelationStore struct{ allowed map[[2]uint64]bool }

func (f *fakeRelationStore) Exists(_ context.Context, userID, inmateID uint64) (bool, error) {
	return f.allowed[[2]uint64{userID, inmateID}], nil
}

type event struct {
	kind string
	v    model.Visit
}

type recordingDispatcher struct{ events []event }

func (d *recordingDispatcher) VisitCreated(_ context.Context, v model.Visit) {
	d.events = append(d.events, event{"created", v})
}
func (d *recordingDispatcher) VisitApproved(_ context.Context, v model.Visit, _ model.Status) {
	d.events = append(d.events, event{"approved", v})
}
func (d *recordingDispatcher) VisitRejected(_ context.Context, v model.Visit, _ model.Status) {
	d.events = append(d.events, event{"rejected", v})
}
func (d *recordingDispatcher) VisitRescheduled(_ context.Context, v model.Visit, _, _ string, _ *uint64) {
	d.events = append(d.events, event{"rescheduled", v})
}
func (d *recordingDispatcher) VisitCancelled(_ context.Context, v model.Visit) {
	d.events = append(d.events, event{"cancelled", v})
}

// ----- harness -----

const (
	ownerID  = uint64(10)
	otherID  = uint64(11)
	inmateID = uint64(7)
)

var (
	visitor = Actor{UserID: ownerID, Role: model.RoleVisitor}
	admin   = Actor{UserID: 99, Role: model.RoleAdmin}
)

func newTestService() (*VisitService, *fakeVisitStore, *recordingDispatcher) {
	store := newFakeVisitStore()
	inmates := &fakeInmateStore{names: map[uint64]string{inmateID: "Luis Pérez"}}
	relations := &fakeRelationStore{allowed: map[[2]uint64]bool{
		{ownerID, inmateID}: true,
	}}
	disp := &recordingDispatcher{}
	return NewVisitService(store, inmates, relations, disp), store, disp
}

func baseInput() CreateVisitInput {
	owner := ownerID
	inmate := inmateID
	return CreateVisitInput{
		VisitorName: "Ana",
		InmateID:    &inmate,
		VisitDate:   "2025-06-15",
		VisitHour:   "09:00",
		CreatedBy:   &owner,
	}
}

// ----- create -----

func TestCreateDefaultsAndNotifies(t *testing.T) {
	svc, store, disp := newTestService()

	in := baseInput()
	in.VisitorName = ""
	in.DurationMinutes = 0
	v, err := svc.Create(context.Background(), in, visitor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.VisitorName != "Visitante" {
		t.Errorf("visitor name = %q, want default", v.VisitorName)
	}
	if v.DurationMinutes != 60 {
		t.Errorf("duration = %d, want default 60", v.DurationMinutes)
	}
	if v.Status != model.StatusPending {
		t.Errorf("status = %s, want PENDING", v.Status)
	}
	if v.InmateName != "Luis Pérez" {
		t.Errorf("inmate name = %q, want resolved name", v.InmateName)
	}
	if v.VisitHour != "09:00:00" {
		t.Errorf("hour = %q, want normalized 09:00:00", v.VisitHour)
	}
	if store.lockCalls != 1 {
		t.Errorf("lock acquired %d times, want 1", store.lockCalls)
	}
	if len(disp.events) != 1 || disp.events[0].kind != "created" {
		t.Errorf("events = %v, want single created", disp.events)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, baseInput(), visitor); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// 09:30 overlaps the existing 09:00-10:00 visit.
	in := baseInput()
	in.VisitHour = "09:30"
	if _, err := svc.Create(ctx, in, visitor); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("overlapping create = %v, want ErrConflict", err)
	}

	// 10:00 starts exactly when the first ends; half-open intervals admit it.
	in = baseInput()
	in.VisitHour = "10:00"
	if _, err := svc.Create(ctx, in, visitor); err != nil {
		t.Fatalf("adjacent create: %v", err)
	}
}

func TestCreateValidatesSlot(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := baseInput()
	in.VisitHour = "07:30"
	if _, err := svc.Create(ctx, in, visitor); !errors.Is(err, schedule.ErrOutOfWindow) {
		t.Fatalf("early slot = %v, want ErrOutOfWindow", err)
	}

	in = baseInput()
	in.DurationMinutes = 45
	if _, err := svc.Create(ctx, in, visitor); !errors.Is(err, schedule.ErrInvalidDuration) {
		t.Fatalf("off-grid duration = %v, want ErrInvalidDuration", err)
	}

	in = baseInput()
	in.VisitDate = ""
	if _, err := svc.Create(ctx, in, visitor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing date = %v, want ErrInvalidInput", err)
	}
}

func TestCreateRequiresAuthorization(t *testing.T) {
	svc, _, _ := newTestService()

	other := otherID
	in := baseInput()
	in.CreatedBy = &other
	if _, err := svc.Create(context.Background(), in, Actor{UserID: otherID, Role: model.RoleVisitor}); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("unauthorized create = %v, want ErrForbidden", err)
	}
}

func TestCreateAdminBypassesGateAndSetsStatus(t *testing.T) {
	svc, _, _ := newTestService()

	st := model.StatusApproved
	other := otherID
	in := baseInput()
	in.CreatedBy = &other // no relation for this pair
	in.Status = &st
	v, err := svc.Create(context.Background(), in, admin)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if v.Status != model.StatusApproved {
		t.Errorf("status = %s, want APPROVED", v.Status)
	}
}

func TestCreateWithoutInmateSkipsConflictCheck(t *testing.T) {
	svc, store, _ := newTestService()

	in := baseInput()
	in.InmateID = nil
	in.InmateName = "Visita general"
	if _, err := svc.Create(context.Background(), in, visitor); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.lockCalls != 0 {
		t.Errorf("lock acquired %d times, want 0 without inmate", store.lockCalls)
	}
}

// ----- update -----

func TestUpdateOwnerRules(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, baseInput(), visitor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A different visitor cannot touch it.
	hour := "11:00"
	if _, err := svc.Update(ctx, v.ID, UpdateVisitInput{VisitHour: &hour}, Actor{UserID: otherID, Role: model.RoleVisitor}); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("foreign update = %v, want ErrForbidden", err)
	}

	// The owner cannot approve their own visit.
	st := model.StatusApproved
	if _, err := svc.Update(ctx, v.ID, UpdateVisitInput{Status: &st}, visitor); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("self-approve = %v, want ErrForbidden", err)
	}

	// The owner can reschedule while pending.
	got, err := svc.Update(ctx, v.ID, UpdateVisitInput{VisitHour: &hour}, visitor)
	if err != nil {
		t.Fatalf("owner reschedule: %v", err)
	}
	if got.VisitHour != "11:00:00" {
		t.Errorf("hour = %q, want 11:00:00", got.VisitHour)
	}

	// After approval the owner can no longer edit.
	cur := store.visits[v.ID]
	cur.Status = model.StatusApproved
	store.visits[v.ID] = cur
	if _, err := svc.Update(ctx, v.ID, UpdateVisitInput{VisitHour: &hour}, visitor); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("post-approval edit = %v, want ErrForbidden", err)
	}
}

func TestUpdateApproveEmitsSingleEvent(t *testing.T) {
	svc, _, disp := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, baseInput(), visitor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	disp.events = nil

	st := model.StatusApproved
	got, err := svc.Update(ctx, v.ID, UpdateVisitInput{Status: &st}, admin)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != model.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", got.Status)
	}
	if len(disp.events) != 1 || disp.events[0].kind != "approved" {
		t.Fatalf("events = %v, want single approved", disp.events)
	}
}

func TestUpdateRescheduleEmitsUpdatedEvent(t *testing.T) {
	svc, _, disp := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, baseInput(), visitor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	disp.events = nil

	date := "2025-06-20"
	if _, err := svc.Update(ctx, v.ID, UpdateVisitInput{VisitDate: &date}, visitor); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if len(disp.events) != 1 || disp.events[0].kind != "rescheduled" {
		t.Fatalf("events = %v, want single rescheduled", disp.events)
	}
}

func TestUpdateRejectsConflictOnReschedule(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, baseInput(), visitor); err != nil {
		t.Fatalf("create first: %v", err)
	}
	in := baseInput()
	in.VisitHour = "11:00"
	second, err := svc.Create(ctx, in, visitor)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Moving the second visit onto the first must fail, but moving it onto
	// its own slot must not conflict with itself.
	hour := "09:30"
	if _, err := svc.Update(ctx, second.ID, UpdateVisitInput{VisitHour: &hour}, visitor); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("conflicting reschedule = %v, want ErrConflict", err)
	}
	same := "11:00"
	if _, err := svc.Update(ctx, second.ID, UpdateVisitInput{VisitHour: &same}, visitor); err != nil {
		t.Fatalf("self reschedule: %v", err)
	}
}

// ----- cancel -----

func TestCancelOwnVisit(t *testing.T) {
	svc, _, disp := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, baseInput(), visitor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	disp.events = nil

	res, err := svc.Cancel(ctx, ownerID, v.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !res.OK || res.Visit == nil || res.Visit.Status != model.StatusCancelled {
		t.Fatalf("cancel result = %+v, want cancelled visit", res)
	}
	if len(disp.events) != 1 || disp.events[0].kind != "cancelled" {
		t.Fatalf("events = %v, want single cancelled", disp.events)
	}

	// A second cancel is no longer eligible.
	res, err = svc.Cancel(ctx, ownerID, v.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if res.OK || res.Message != "La visita no se puede cancelar" {
		t.Fatalf("second cancel result = %+v, want failure message", res)
	}
}

func TestCancelForeignVisitFails(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	v, err := svc.Create(ctx, baseInput(), visitor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := svc.Cancel(ctx, otherID, v.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.OK {
		t.Fatal("foreign cancel must not succeed")
	}
}
