package booking

// Event types published through the outbox. Topic names equal event types.
const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventReminderDue          = "booking.reminder.due.v1"
)

// AppointmentEvent is the payload shared by booked, cancelled and
// reminder-due events. Recipient fields come from the local users projection
// and may be empty when the projection has not caught up yet.
type AppointmentEvent struct {
	AppointmentID  string `json:"appointment_id"`
	UserID         string `json:"user_id"`
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"`
	TimeSlot       string `json:"time_slot"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	RecipientName  string `json:"recipient_name,omitempty"`
}
