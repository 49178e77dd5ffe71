package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/visicontrol/visit-scheduler/internal/model"
	"github.com/visicontrol/visit-scheduler/internal/queue"
	"github.com/visicontrol/visit-scheduler/internal/repository"
)

// NotificationStore is the persistence surface for notification rows.
type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) error
	InsertReminderOnce(ctx context.Context, n *model.Notification) (bool, error)
	ListByUser(ctx context.Context, userID uint64, onlyUnread bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error)
	CountUnread(ctx context.Context, userID uint64) (int, error)
}

// UserStore resolves notification recipients.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// ReminderSource lists visits eligible for the daily reminder sweep.
type ReminderSource interface {
	ListTomorrowForReminder(ctx context.Context, tomorrow string) ([]repository.ReminderCandidate, error)
}

// LivePusher pushes a stored notification to connected clients.
type LivePusher interface {
	Push(ctx context.Context, n model.Notification)
}

// EmailPublisher hands an email event to the outbound queue.
type EmailPublisher func(ctx context.Context, ev queue.VisitEmailEvent) error

// NotificationService creates notification rows for visit lifecycle events,
// pushes them to live listeners and enqueues emails. It implements the
// Dispatcher the visit engine calls into. Every failure here is logged and
// swallowed; notifications never fail the mutation that caused them.
type NotificationService struct {
	store   NotificationStore
	users   UserStore
	visits  ReminderSource
	pusher  LivePusher
	publish EmailPublisher

	now func() time.Time
}

// NewNotificationService wires the dispatcher. pusher and publish may be
// nil; the corresponding channel is then skipped.
func NewNotificationService(store NotificationStore, users UserStore, visits ReminderSource, pusher LivePusher, publish EmailPublisher) *NotificationService {
	return &NotificationService{
		store:   store,
		users:   users,
		visits:  visits,
		pusher:  pusher,
		publish: publish,
		now:     time.Now,
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint64, onlyUnread bool, limit int) ([]model.Notification, error) {
	return s.store.ListByUser(ctx, userID, onlyUnread, limit)
}

// MarkRead flags the given notifications as read, scoped to the owner.
func (s *NotificationService) MarkRead(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	return s.store.MarkRead(ctx, userID, ids)
}

// CountUnread returns the user's unread badge count.
func (s *NotificationService) CountUnread(ctx context.Context, userID uint64) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// VisitCreated notifies the owner their request was registered.
func (s *NotificationService) VisitCreated(ctx context.Context, v model.Visit) {
	if v.CreatedBy == nil {
		return
	}
	n := model.Notification{
		UserID:  *v.CreatedBy,
		VisitID: &v.ID,
		Kind:    model.KindVisitCreated,
		Title:   "Visita registrada",
		Body: fmt.Sprintf("Tu visita fue registrada para el %s a las %s. Estado: %s.",
			formatDateForText(v.VisitDate), formatTimeForText(v.VisitHour), v.Status.Label()),
		Meta: model.BuildVisitMeta(v),
	}
	s.deliver(ctx, &n)
}

// VisitApproved notifies the owner and emails them when opted in.
func (s *NotificationService) VisitApproved(ctx context.Context, v model.Visit, old model.Status) {
	if v.CreatedBy == nil {
		return
	}
	meta := model.BuildVisitMeta(v)
	meta["old_status"] = string(old)
	meta["new_status"] = string(v.Status)
	n := model.Notification{
		UserID:  *v.CreatedBy,
		VisitID: &v.ID,
		Kind:    model.KindVisitApproved,
		Title:   "Visita Aprobada",
		Body:    "Tu solicitud de visita ha sido aprobada.",
		Meta:    meta,
	}
	s.deliver(ctx, &n)
	s.emailStatusChange(ctx, v, "aprobada")
}

// VisitRejected notifies the owner and emails them when opted in.
func (s *NotificationService) VisitRejected(ctx context.Context, v model.Visit, old model.Status) {
	if v.CreatedBy == nil {
		return
	}
	meta := model.BuildVisitMeta(v)
	meta["old_status"] = string(old)
	meta["new_status"] = string(v.Status)
	n := model.Notification{
		UserID:  *v.CreatedBy,
		VisitID: &v.ID,
		Kind:    model.KindVisitCanceled,
		Title:   "Visita Rechazada",
		Body:    "Lamentamos informarte que tu visita fue rechazada.",
		Meta:    meta,
	}
	s.deliver(ctx, &n)
	s.emailStatusChange(ctx, v, "rechazada")
}

// VisitRescheduled notifies the owner of a date, hour or inmate change that
// did not alter the status.
func (s *NotificationService) VisitRescheduled(ctx context.Context, v model.Visit, oldDate, oldHour string, oldInmateID *uint64) {
	if v.CreatedBy == nil {
		return
	}
	meta := model.BuildVisitMeta(v)
	meta["old_visit_date"] = oldDate
	meta["old_visit_hour"] = oldHour
	if oldInmateID != nil {
		meta["old_inmate_id"] = *oldInmateID
	}
	n := model.Notification{
		UserID:  *v.CreatedBy,
		VisitID: &v.ID,
		Kind:    model.KindVisitUpdated,
		Title:   "Visita reprogramada",
		Body: fmt.Sprintf("Tu visita fue actualizada para el %s a las %s.",
			formatDateForText(v.VisitDate), formatTimeForText(v.VisitHour)),
		Meta: meta,
	}
	s.deliver(ctx, &n)
	s.emailStatusChange(ctx, v, "reprogramada")
}

// VisitCancelled records the owner's own cancellation. No email: the owner
// initiated the change themselves.
func (s *NotificationService) VisitCancelled(ctx context.Context, v model.Visit) {
	if v.CreatedBy == nil {
		return
	}
	n := model.Notification{
		UserID:  *v.CreatedBy,
		VisitID: &v.ID,
		Kind:    model.KindVisitCanceled,
		Title:   "Visita cancelada",
		Body: fmt.Sprintf("Tu visita del %s a las %s fue cancelada.",
			formatDateForText(v.VisitDate), formatTimeForText(v.VisitHour)),
		Meta: model.BuildVisitMeta(v),
	}
	s.deliver(ctx, &n)
}

// RunReminderSweep inserts one reminder per visit scheduled for tomorrow
// whose owner opted into emails. Re-running the sweep on the same day is
// safe: the insert is a no-op for visits already reminded. Returns how many
// reminders were created.
func (s *NotificationService) RunReminderSweep(ctx context.Context) (int, error) {
	tomorrow := s.now().AddDate(0, 0, 1).Format("2006-01-02")
	candidates, err := s.visits.ListTomorrowForReminder(ctx, tomorrow)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range candidates {
		visitID := c.VisitID
		n := model.Notification{
			UserID:  c.UserID,
			VisitID: &visitID,
			Kind:    model.KindVisitReminder,
			Title:   "Recordatorio de visita",
			Body:    "Recuerda que mañana tienes una visita programada.",
			Meta: model.Meta{
				"visit_date":  c.VisitDate,
				"visit_hour":  c.VisitHour,
				"inmate_name": c.InmateName,
			},
		}
		ok, err := s.store.InsertReminderOnce(ctx, &n)
		if err != nil {
			log.Printf("notify: reminder insert for visit %d failed: %v", c.VisitID, err)
			continue
		}
		if !ok {
			continue
		}
		created++
		if s.pusher != nil {
			s.pusher.Push(ctx, n)
		}
		if s.publish != nil && c.UserEmail != "" {
			ev := queue.VisitEmailEvent{
				To:         c.UserEmail,
				UserName:   c.UserName,
				InmateName: c.InmateName,
				VisitDate:  formatDateForText(c.VisitDate),
				VisitHour:  formatTimeForText(c.VisitHour),
				Kind:       queue.EmailKindReminder,
			}
			if err := s.publish(ctx, ev); err != nil {
				log.Printf("notify: reminder email enqueue for visit %d failed: %v", c.VisitID, err)
			}
		}
	}
	return created, nil
}

// deliver stores the row and pushes it live.
func (s *NotificationService) deliver(ctx context.Context, n *model.Notification) {
	if err := s.store.Insert(ctx, n); err != nil {
		log.Printf("notify: insert %s for user %d failed: %v", n.Kind, n.UserID, err)
		return
	}
	if s.pusher != nil {
		s.pusher.Push(ctx, *n)
	}
}

// emailStatusChange enqueues a status-change email when the owner opted in.
func (s *NotificationService) emailStatusChange(ctx context.Context, v model.Visit, label string) {
	if s.publish == nil || v.CreatedBy == nil {
		return
	}
	u, err := s.users.GetByID(ctx, *v.CreatedBy)
	if err != nil {
		log.Printf("notify: load user %d failed: %v", *v.CreatedBy, err)
		return
	}
	if !u.NotifyEmail || u.Email == "" {
		return
	}
	ev := queue.VisitEmailEvent{
		To:          u.Email,
		UserName:    u.Name,
		InmateName:  v.InmateName,
		VisitDate:   formatDateForText(v.VisitDate),
		VisitHour:   formatTimeForText(v.VisitHour),
		Kind:        queue.EmailKindStatus,
		StatusLabel: label,
	}
	if err := s.publish(ctx, ev); err != nil {
		log.Printf("notify: email enqueue for visit %d failed: %v", v.ID, err)
	}
}

// formatDateForText renders YYYY-MM-DD as dd/MM/yyyy for user-facing copy.
// Unparseable input is returned unchanged.
func formatDateForText(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}

// formatTimeForText trims HH:mm:ss to HH:mm.
func formatTimeForText(hour string) string {
	if parts := strings.Split(hour, ":"); len(parts) >= 2 {
		return parts[0] + ":" + parts[1]
	}
	return hour
}
