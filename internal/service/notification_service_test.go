package service

import (
	"context"
	"testing"
	"time"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/queue"
	"github.com/visicontrol/visit-scheduler/internal/repository"
)

// ----- fakes -----

type reminderKey struct {
	userID  uint64
	visitID uint64
	kind    model.Kind
}

type fakeNotificationStore struct {
	rows   []model.Notification
	nextID uint64
	seen   map[reminderKey]bool
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{seen: make(map[reminderKey]bool)}
}

func (f *fakeNotificationStore) Insert(_ context.Context, n *model.Notification) error {
	f.nextID++
	n.ID = f.nextID
	f.rows = append(f.rows, *n)
	return nil
}

func (f *fakeNotificationStore) InsertReminderOnce(ctx context.Context, n *model.Notification) (bool, error) {
	var visitID uint64
	if n.VisitID != nil {
		visitID = *n.VisitID
	}
	key := reminderKey{n.UserID, visitID, n.Kind}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, f.Insert(ctx, n)
}

func (f *fakeNotificationStore) ListByUser(_ context.Context, userID uint64, onlyUnread bool, _ int) ([]model.Notification, error) {
	out := make([]model.Notification, 0)
	for _, n := range f.rows {
		if n.UserID != userID {
			continue
		}
		if onlyUnread && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, userID uint64, ids []uint64) (int64, error) {
	want := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var updated int64
	for i := range f.rows {
		if f.rows[i].UserID == userID && want[f.rows[i].ID] && !f.rows[i].IsRead {
			f.rows[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeNotificationStore) CountUnread(_ context.Context, userID uint64) (int, error) {
	count := 0
	for _, n := range f.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type fakeUserStore struct{ users map[uint64]model.User }

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type fakeReminderSource struct{ byDate map[string][]repository.ReminderCandidate }

func (f *fakeReminderSource) ListTomorrowForReminder(_ context.Context, tomorrow string) ([]repository.ReminderCandidate, error) {
	return f.byDate[tomorrow], nil
}

type fakePusher struct{ pushed []model.Notification }

func (f *fakePusher) Push(_ context.Context, n model.Notification) {
	f.pushed = append(f.pushed, n)
}

type capturedEmails struct{ events []queue.VisitEmailEvent }

func (c *capturedEmails) publish(_ context.Context, ev queue.VisitEmailEvent) error {
	c.events = append(c.events, ev)
	return nil
}

// ----- harness -----

func newNotificationHarness() (*NotificationService, *fakeNotificationStore, *fakePusher, *capturedEmails) {
	store := newFakeNotificationStore()
	users := &fakeUserStore{users: map[uint64]model.User{
		ownerID: {ID: ownerID, Email: "ana@example.com", Name: "Ana", NotifyEmail: true},
		otherID: {ID: otherID, Email: "luis@example.com", Name: "Luis", NotifyEmail: false},
	}}
	source := &fakeReminderSource{byDate: map[string][]repository.ReminderCandidate{
		"2025-06-16": {
			{VisitID: 1, UserID: ownerID, UserEmail: "ana@example.com", UserName: "Ana",
				InmateName: "Luis Pérez", VisitDate: "2025-06-16", VisitHour: "09:30:00"},
			{VisitID: 2, UserID: ownerID, UserEmail: "ana@example.com", UserName: "Ana",
				InmateName: "Luis Pérez", VisitDate: "2025-06-16", VisitHour: "11:00:00"},
		},
	}}
	pusher := &fakePusher{}
	emails := &capturedEmails{}
	svc := NewNotificationService(store, users, source, pusher, emails.publish)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC) }
	return svc, store, pusher, emails
}

func ownedVisit() model.Visit {
	owner := ownerID
	inmate := inmateID
	return model.Visit{
		ID:              5,
		VisitorName:     "Ana",
		InmateID:        &inmate,
		InmateName:      "Luis Pérez",
		VisitDate:       "2025-06-15",
		VisitHour:       "09:30:00",
		DurationMinutes: 60,
		Status:          model.StatusApproved,
		CreatedBy:       &owner,
	}
}

// ----- dispatch -----

func TestVisitApprovedStoresPushesAndEmails(t *testing.T) {
	svc, store, pusher, emails := newNotificationHarness()

	svc.VisitApproved(context.Background(), ownedVisit(), model.StatusPending)

	if len(store.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(store.rows))
	}
	n := store.rows[0]
	if n.Kind != model.KindVisitApproved || n.Title != "Visita Aprobada" {
		t.Errorf("row = %s %q, want approved title", n.Kind, n.Title)
	}
	if n.Body != "Tu solicitud de visita ha sido aprobada." {
		t.Errorf("body = %q", n.Body)
	}
	if n.Meta["old_status"] != "PENDING" || n.Meta["new_status"] != "APPROVED" {
		t.Errorf("meta statuses = %v", n.Meta)
	}
	if len(pusher.pushed) != 1 {
		t.Errorf("pushed = %d, want 1", len(pusher.pushed))
	}
	if len(emails.events) != 1 {
		t.Fatalf("emails = %d, want 1", len(emails.events))
	}
	ev := emails.events[0]
	if ev.To != "ana@example.com" || ev.Kind != queue.EmailKindStatus || ev.StatusLabel != "aprobada" {
		t.Errorf("email event = %+v", ev)
	}
	if ev.VisitDate != "15/06/2025" || ev.VisitHour != "09:30" {
		t.Errorf("email formatting = %s %s", ev.VisitDate, ev.VisitHour)
	}
}

func TestVisitRejectedSkipsEmailWhenOptedOut(t *testing.T) {
	svc, store, _, emails := newNotificationHarness()

	v := ownedVisit()
	other := otherID
	v.CreatedBy = &other
	v.Status = model.StatusRejected
	svc.VisitRejected(context.Background(), v, model.StatusPending)

	if len(store.rows) != 1 || store.rows[0].Title != "Visita Rechazada" {
		t.Fatalf("rows = %+v, want single rejected row", store.rows)
	}
	if len(emails.events) != 0 {
		t.Fatalf("emails = %d, want 0 for opted-out user", len(emails.events))
	}
}

func TestVisitRescheduledCarriesOldSchedule(t *testing.T) {
	svc, store, _, _ := newNotificationHarness()

	old := uint64(3)
	svc.VisitRescheduled(context.Background(), ownedVisit(), "2025-06-10", "08:00:00", &old)

	if len(store.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(store.rows))
	}
	n := store.rows[0]
	if n.Kind != model.KindVisitUpdated || n.Title != "Visita reprogramada" {
		t.Errorf("row = %s %q", n.Kind, n.Title)
	}
	if n.Meta["old_visit_date"] != "2025-06-10" || n.Meta["old_inmate_id"] != uint64(3) {
		t.Errorf("meta = %v", n.Meta)
	}
}

func TestDispatchIgnoresUnownedVisits(t *testing.T) {
	svc, store, _, _ := newNotificationHarness()

	v := ownedVisit()
	v.CreatedBy = nil
	svc.VisitCreated(context.Background(), v)
	svc.VisitApproved(context.Background(), v, model.StatusPending)
	svc.VisitCancelled(context.Background(), v)

	if len(store.rows) != 0 {
		t.Fatalf("rows = %d, want 0 for unowned visit", len(store.rows))
	}
}

// ----- reminder sweep -----

func TestReminderSweepIsIdempotent(t *testing.T) {
	svc, store, pusher, emails := newNotificationHarness()
	ctx := context.Background()

	created, err := svc.RunReminderSweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if len(store.rows) != 2 || len(pusher.pushed) != 2 || len(emails.events) != 2 {
		t.Fatalf("rows=%d pushed=%d emails=%d, want 2 each", len(store.rows), len(pusher.pushed), len(emails.events))
	}
	if emails.events[0].Kind != queue.EmailKindReminder {
		t.Errorf("email kind = %s, want reminder", emails.events[0].Kind)
	}

	// Running again the same day sends nothing new.
	created, err = svc.RunReminderSweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if created != 0 {
		t.Fatalf("second sweep created = %d, want 0", created)
	}
	if len(store.rows) != 2 || len(emails.events) != 2 {
		t.Fatalf("second sweep grew output: rows=%d emails=%d", len(store.rows), len(emails.events))
	}
}

// ----- accessors -----

func TestMarkReadAndCountUnread(t *testing.T) {
	svc, store, _, _ := newNotificationHarness()
	ctx := context.Background()

	svc.VisitCreated(ctx, ownedVisit())
	svc.VisitCancelled(ctx, ownedVisit())

	count, err := svc.CountUnread(ctx, ownerID)
	if err != nil || count != 2 {
		t.Fatalf("unread = %d, %v; want 2", count, err)
	}

	updated, err := svc.MarkRead(ctx, ownerID, []uint64{store.rows[0].ID})
	if err != nil || updated != 1 {
		t.Fatalf("mark read = %d, %v; want 1", updated, err)
	}
	count, _ = svc.CountUnread(ctx, ownerID)
	if count != 1 {
		t.Fatalf("unread after mark = %d, want 1", count)
	}

	// Marking foreign or already-read rows changes nothing.
	updated, _ = svc.MarkRead(ctx, otherID, []uint64{store.rows[1].ID})
	if updated != 0 {
		t.Fatalf("foreign mark read = %d, want 0", updated)
	}
}

// ----- text helpers -----

func TestFormatHelpers(t *testing.T) {
	if got := formatDateForText("2025-06-15"); got != "15/06/2025" {
		t.Errorf("formatDateForText = %q", got)
	}
	if got := formatDateForText("garbage"); got != "garbage" {
		t.Errorf("formatDateForText passthrough = %q", got)
	}
	if got := formatTimeForText("09:30:00"); got != "09:30" {
		t.Errorf("formatTimeForText = %q", got)
	}
	if got := formatTimeForText("09:30"); got != "09:30" {
		t.Errorf("formatTimeForText = %q", got)
	}
}
