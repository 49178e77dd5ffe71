package model

import (
	"strings"
	"time"
)

// Inmate is a minimal record of a detained person. The scheduling core only
// needs identity and a display name; richer inmate management lives outside
// this service.
type Inmate struct {
	ID        uint64    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Status    string    `json:"status"` // ENABLED | DISABLED
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName joins first and last name, trimming stray whitespace.
func (i Inmate) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Relation tags how a visitor account is linked to an inmate in the
// `user_inmates` authorization table.
type Relation string

const (
	RelationAuthorized Relation = "AUTHORIZED"
	RelationFamily     Relation = "FAMILY"
	RelationLawyer     Relation = "LAWYER"
	RelationOther      Relation = "OTHER"
)

// ParseRelation normalizes a raw relation tag, defaulting to AUTHORIZED.
func ParseRelation(s string) Relation {
	switch Relation(normalizeUpper(s)) {
	case RelationFamily:
		return RelationFamily
	case RelationLawyer:
		return RelationLawyer
	case RelationOther:
		return RelationOther
	}
	return RelationAuthorized
}

// UserInmate is one row of the authorization table consulted before a
// visitor may book an inmate.
type UserInmate struct {
	UserID   uint64   `json:"user_id"`
	InmateID uint64   `json:"inmate_id"`
	Relation Relation `json:"rel"`
}
