// Package slot validates and normalizes requested appointment slots before
// any storage work happens. It is deliberately free of I/O so the rules are
// trivially testable.
package slot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
)

const (
	// DateLayout is the canonical calendar-day form stored on appointments.
	DateLayout = "2006-01-02"

	// OpenHour and CloseHour bound the working day. CloseHour:00 itself is
	// the last bookable slot.
	OpenHour  = 9
	CloseHour = 17
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Slot is a validated, normalized appointment slot.
type Slot struct {
	Date string // YYYY-MM-DD
	Time string // HH:MM, zero-padded
}

// Validate checks a requested date and time slot against the booking rules
// and returns the normalized slot. now supplies "today"; dates are compared
// as calendar days in UTC, so booking for later today is allowed.
func Validate(date, timeSlot string, now time.Time) (Slot, error) {
	d, err := ValidateDate(date, now)
	if err != nil {
		return Slot{}, err
	}
	t, err := ValidateTime(timeSlot)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

// ValidateDate checks the YYYY-MM-DD form, that the value is a real calendar
// day, and that it is not in the past.
func ValidateDate(date string, now time.Time) (string, error) {
	date = strings.TrimSpace(date)
	if !dateRe.MatchString(date) {
		return "", booking.Validation("date must be in YYYY-MM-DD format")
	}
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", booking.Validation("date is not a valid calendar day")
	}
	// Re-format so e.g. a parsed-but-shifted value cannot slip through.
	canonical := parsed.Format(DateLayout)
	if canonical != date {
		return "", booking.Validation("date is not a valid calendar day")
	}
	today := now.UTC().Format(DateLayout)
	if canonical < today {
		return "", booking.Validation("date must not be in the past")
	}
	return canonical, nil
}

// ValidateTime checks the HH:MM form and that the hour falls inside working
// hours. A single-digit hour is accepted and zero-padded. 17:00 is the last
// bookable slot; later minutes in hour 17 are rejected.
func ValidateTime(timeSlot string) (string, error) {
	timeSlot = strings.TrimSpace(timeSlot)
	m := timeRe.FindStringSubmatch(timeSlot)
	if m == nil {
		return "", booking.Validation("timeSlot must be in HH:MM format")
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return "", booking.Validation("timeSlot is not a valid time of day")
	}
	if hour < OpenHour || hour > CloseHour || (hour == CloseHour && minute > 0) {
		return "", booking.Validation(fmt.Sprintf("timeSlot must be between %02d:00 and %02d:00", OpenHour, CloseHour))
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
