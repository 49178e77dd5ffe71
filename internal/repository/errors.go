// Package repository implements the persistence layer over MySQL. Sentinel
// errors defined here let the service and handler layers distinguish failure
// modes without inspecting driver errors: ErrNotFound maps to 404,
// ErrForbidden to 403 and ErrConflict to 409 responses.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller is not permitted to act on a
// resource, such as booking an inmate without an authorization relation.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot proceed because of existing
// state, such as a candidate slot overlapping a booked visit.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering a duplicate email address.
var ErrEmailExists = errors.New("email already exists")
