// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds for VisitEmailEvent. The consumer picks the mail template
// from this field.
const (
	EmailKindReminder = "reminder"
	EmailKindStatus   = "status"
)

// VisitEmailEvent is published when a visit needs an email sent to its
// owner. It carries enough information for the mail worker to render and
// send the message without querying the primary database.
type VisitEmailEvent struct {
	To          string `json:"to"`
	UserName    string `json:"user_name"`
	InmateName  string `json:"inmate_name"`
	VisitDate   string `json:"visit_date"`
	VisitHour   string `json:"visit_hour"`
	Kind        string `json:"kind"`
	StatusLabel string `json:"status_label,omitempty"`
}
