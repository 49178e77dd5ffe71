package model

import "time"

// Status is the lifecycle stage of a visit. The set is closed; anything
// read from the outside world must go through ParseStatus.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus maps a raw string onto a Status, case-insensitively. The
// second return value is false for anything outside the known set.
func ParseStatus(s string) (Status, bool) {
	switch Status(normalizeUpper(s)) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusRejected:
		return StatusRejected, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// Label returns the Spanish user-facing label shown in notifications and
// emails. Unknown values fall back to Pendiente.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusApproved:
		return "Aprobada"
	case StatusRejected:
		return "Rechazada"
	case StatusCancelled:
		return "Cancelada"
	}
	return "Pendiente"
}

// Live reports whether the status still occupies its slot. Only PENDING and
// APPROVED visits block other bookings.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusApproved
}

// CanTransition is the transition table for status changes. Privileged
// actors may move a visit between any two states. Ordinary owners may only
// cancel a visit that is still pending; in particular they can never approve
// or reject.
func CanTransition(from, to Status, privileged bool) bool {
	if from == to {
		return true
	}
	if privileged {
		return true
	}
	return from == StatusPending && to == StatusCancelled
}

// Visit mirrors the `visits` table. Dates travel as ISO calendar days and
// hours as "HH:mm:ss" strings, matching the DATE and TIME column types.
//
// Fields:
//  ID              – primary key identifier.
//  VisitorName     – display name of the person visiting.
//  InmateID        – visited inmate (nullable; see service for semantics).
//  InmateName      – denormalized inmate display name.
//  VisitDate       – calendar day of the visit (YYYY-MM-DD).
//  VisitHour       – start time of day (HH:mm:ss).
//  DurationMinutes – one of 30, 60, 90, 120.
//  Status          – lifecycle stage.
//  Notes           – free text (nullable).
//  CreatedBy       – owning account (nullable for administrative inserts).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Visit struct {
	ID              uint64  `json:"id"`
	VisitorName     string  `json:"visitor_name"`
	InmateID        *uint64 `json:"inmate_id"`
	InmateName      string  `json:"inmate_name"`
	VisitDate       string  `json:"visit_date"`
	VisitHour       string  `json:"visit_hour"`
	DurationMinutes int     `json:"duration_minutes"`
	Status          Status  `json:"status"`
	Notes           *string `json:"notes"`
	CreatedBy       *uint64 `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func normalizeUpper(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' {
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		b = append(b, c)
	}
	return string(b)
}
