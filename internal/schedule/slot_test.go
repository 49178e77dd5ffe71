package schedule

import (
	"testing"
	"time"
)

func TestValidateSlot(t *testing.T) {
	cases := []struct {
		name     string
		startMin int
		duration int
		wantErr  error
	}{
		{"opening slot", 480, 60, nil},
		{"last possible slot", 960, 60, nil},
		{"ends exactly at close", 900, 120, nil},
		{"before opening", 450, 60, ErrOutOfWindow},
		{"runs past close", 990, 60, ErrOutOfWindow},
		{"off-grid duration", 540, 45, ErrInvalidDuration},
		{"zero duration", 540, 0, ErrInvalidDuration},
		{"negative duration", 540, -30, ErrInvalidDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateSlot(tc.startMin, tc.duration); err != tc.wantErr {
				t.Fatalf("ValidateSlot(%d, %d) = %v, want %v", tc.startMin, tc.duration, err, tc.wantErr)
			}
		})
	}
}

func TestIntervalOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{540, 600}, Interval{540, 600}, true},
		{"partial", Interval{540, 600}, Interval{570, 630}, true},
		{"contained", Interval{540, 660}, Interval{570, 600}, true},
		{"back to back", Interval{540, 600}, Interval{600, 660}, false},
		{"disjoint", Interval{540, 600}, Interval{720, 780}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("%v.Overlaps(%v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			// Overlap is symmetric.
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("%v.Overlaps(%v) = %v, want %v", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func TestHasConflict(t *testing.T) {
	booked := []Interval{{540, 600}, {660, 720}}
	if !HasConflict(Interval{570, 630}, booked) {
		t.Fatal("expected conflict with first booking")
	}
	if HasConflict(Interval{600, 660}, booked) {
		t.Fatal("slot fitting exactly between bookings must not conflict")
	}
	if HasConflict(Interval{600, 660}, nil) {
		t.Fatal("no bookings must never conflict")
	}
}

func TestNewIntervalDefaultsDuration(t *testing.T) {
	iv := NewInterval(540, 0)
	if iv.End-iv.Start != DefaultDurationMinutes {
		t.Fatalf("got span %d, want %d", iv.End-iv.Start, DefaultDurationMinutes)
	}
}

func TestParseHour(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:30", 570, false},
		{"09:30:00", 570, false},
		{" 08:00 ", 480, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"nine", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseHour(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseHour(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseHour(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestFormatHourRoundTrip(t *testing.T) {
	for _, min := range []int{0, 480, 570, 1019} {
		got, err := ParseHour(FormatHour(min))
		if err != nil || got != min {
			t.Fatalf("round trip of %d gave %d, %v", min, got, err)
		}
	}
}

func TestSameOrAfter(t *testing.T) {
	ref := time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)
	if !SameOrAfter("2025-06-15", ref) {
		t.Fatal("same day must count as upcoming")
	}
	if !SameOrAfter("2025-06-16", ref) {
		t.Fatal("tomorrow must count as upcoming")
	}
	if SameOrAfter("2025-06-14", ref) {
		t.Fatal("yesterday must not count as upcoming")
	}
	if SameOrAfter("not-a-date", ref) {
		t.Fatal("malformed dates must be treated as past")
	}
}
