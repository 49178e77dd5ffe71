package model

import "time"

// Kind classifies a notification. The set mirrors the events the visit
// lifecycle can emit plus a generic SYSTEM bucket.
type Kind string

const (
	KindVisitCreated  Kind = "VISIT_CREATED"
	KindVisitApproved Kind = "VISIT_APPROVED"
	KindVisitUpdated  Kind = "VISIT_UPDATED"
	KindVisitReminder Kind = "VISIT_REMINDER"
	KindVisitCanceled Kind = "VISIT_CANCELED"
	KindSystem        Kind = "SYSTEM"
)

// Meta is the denormalized snapshot of a visit stored alongside a
// notification. It captures the visit as it looked at event time so the
// record stays meaningful after later edits. Extra keys (old/new status,
// old/new schedule) are added per event kind.
type Meta map[string]any

// BuildVisitMeta snapshots the fields of a visit that notifications carry.
func BuildVisitMeta(v Visit) Meta {
	var inmateID any
	if v.InmateID != nil {
		inmateID = *v.InmateID
	}
	return Meta{
		"visit_id":     v.ID,
		"visitor_name": v.VisitorName,
		"inmate_name":  v.InmateName,
		"visit_date":   v.VisitDate,
		"visit_hour":   v.VisitHour,
		"status":       string(v.Status),
		"status_label": v.Status.Label(),
		"inmate_id":    inmateID,
	}
}

// Notification mirrors the `notifications` table. Rows are immutable after
// insertion except for the read flag and its timestamp.
type Notification struct {
	ID        uint64     `json:"id"`
	UserID    uint64     `json:"user_id"`
	VisitID   *uint64    `json:"visit_id"`
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Meta      Meta       `json:"meta"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}
