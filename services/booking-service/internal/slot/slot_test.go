package slot

import (
	"errors"
	"testing"
	"time"

	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
)

var testNow = time.Date(2026, time.March, 10, 12, 30, 0, 0, time.UTC)

func TestValidateDate(t *testing.T) {
	cases := []struct {
		name string
		date string
		want string
		ok   bool
	}{
		{"today", "2026-03-10", "2026-03-10", true},
		{"tomorrow", "2026-03-11", "2026-03-11", true},
		{"yesterday", "2026-03-09", "", false},
		{"bad format slash", "2026/03/10", "", false},
		{"bad format short", "26-03-10", "", false},
		{"not a calendar day", "2026-02-30", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateDate(tc.date, testNow)
			if tc.ok {
				if err != nil {
					t.Fatalf("ValidateDate(%q): unexpected error %v", tc.date, err)
				}
				if got != tc.want {
					t.Fatalf("ValidateDate(%q) = %q, want %q", tc.date, got, tc.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateDate(%q): expected error, got %q", tc.date, got)
			}
			var be *booking.Error
			if !errors.As(err, &be) || be.Kind != booking.KindValidation {
				t.Fatalf("ValidateDate(%q): expected validation error, got %v", tc.date, err)
			}
		})
	}
}

func TestValidateTime(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"opening slot", "09:00", "09:00", true},
		{"closing slot", "17:00", "17:00", true},
		{"mid morning", "10:30", "10:30", true},
		{"single digit hour normalized", "9:15", "09:15", true},
		{"just before opening", "08:59", "", false},
		{"just after last slot", "17:01", "", false},
		{"evening", "20:00", "", false},
		{"bad minute", "10:75", "", false},
		{"bad format", "ten o'clock", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateTime(tc.in)
			if tc.ok {
				if err != nil {
					t.Fatalf("ValidateTime(%q): unexpected error %v", tc.in, err)
				}
				if got != tc.want {
					t.Fatalf("ValidateTime(%q) = %q, want %q", tc.in, got, tc.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateTime(%q): expected error, got %q", tc.in, got)
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	s, err := Validate(" 2026-03-12 ", "9:05", testNow)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Date != "2026-03-12" || s.Time != "09:05" {
		t.Fatalf("Validate returned %+v, want 2026-03-12 09:05", s)
	}
}
