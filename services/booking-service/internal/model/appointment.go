package model

import "time"

const (
	StatusBooked    = "Booked"
	StatusCancelled = "Cancelled"
	StatusCompleted = "Completed"
)

// Appointment is one booked slot. Date and TimeSlot are canonical strings
// ("YYYY-MM-DD", "HH:MM"); ISO dates compare correctly as text, so no parsed
// calendar value is stored.
type Appointment struct {
	ID             string
	UserID         string
	ProfessionalID string
	Date           string
	TimeSlot       string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
