// Package schedule contains the pure scheduling rules for visits: the
// facility operating window, the fixed duration grid and half-open interval
// overlap detection. Nothing in this package performs I/O; callers supply
// the candidate slot and the already-booked intervals.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Facility operating window, expressed in minutes since midnight. Visits may
// start at 08:00 at the earliest and must end by 17:00.
const (
	OpenMinute  = 8 * 60  // 480
	CloseMinute = 17 * 60 // 1020
)

// DefaultDurationMinutes is assumed for stored rows without a duration.
const DefaultDurationMinutes = 60

// AllowedDurations is the fixed grid of bookable visit lengths in minutes.
var AllowedDurations = []int{30, 60, 90, 120}

var (
	// ErrInvalidDuration is returned when the duration is not on the grid.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrOutOfWindow is returned when the slot falls outside opening hours.
	ErrOutOfWindow = errors.New("slot outside facility hours")
	// ErrBadTime is returned for malformed date or hour strings.
	ErrBadTime = errors.New("malformed date or time")
)

// ValidateSlot checks a candidate (start, duration) pair against the
// facility constraints. startMin is minutes since midnight.
func ValidateSlot(startMin, durationMin int) error {
	ok := false
	for _, d := range AllowedDurations {
		if durationMin == d {
			ok = true
			break
		}
	}
	if !ok {
		return ErrInvalidDuration
	}
	if startMin < OpenMinute || startMin+durationMin > CloseMinute {
		return ErrOutOfWindow
	}
	return nil
}

// Interval is a half-open [Start, End) span in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// NewInterval builds the interval occupied by a visit starting at startMin
// with the given duration. A non-positive duration falls back to the default.
func NewInterval(startMin, durationMin int) Interval {
	if durationMin <= 0 {
		durationMin = DefaultDurationMinutes
	}
	return Interval{Start: startMin, End: startMin + durationMin}
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// HasConflict reports whether the candidate interval overlaps any of the
// supplied already-booked intervals. The caller is responsible for fetching
// the booked list consistently (same inmate, same date, live statuses only).
func HasConflict(candidate Interval, booked []Interval) bool {
	for _, b := range booked {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// ParseHour converts an "HH:mm" or "HH:mm:ss" string into minutes since
// midnight. Seconds are accepted and ignored.
func ParseHour(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, ErrBadTime
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, ErrBadTime
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, ErrBadTime
	}
	return h*60 + m, nil
}

// FormatHour renders minutes since midnight as "HH:mm".
func FormatHour(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrBadTime
	}
	return t, nil
}

// SameOrAfter reports whether date (YYYY-MM-DD) is today or later relative
// to the supplied reference time. Malformed dates are treated as past so
// they never pass a "still upcoming" check.
func SameOrAfter(date string, ref time.Time) bool {
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(today)
}
