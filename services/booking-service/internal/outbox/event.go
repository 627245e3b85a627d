package outbox

// Lifecycle event types. The Kafka topic is the configured prefix followed
// by the type.
const (
	AppointmentScheduled   = "appointment.scheduled"
	AppointmentConfirmed   = "appointment.confirmed"
	AppointmentCancelled   = "appointment.cancelled"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentCompleted   = "appointment.completed"
	AppointmentNoShow      = "appointment.no_show"

	ActionCreated   = "board.action.created"
	ActionCompleted = "board.action.completed"
	ActionRejected  = "board.action.rejected"
)

// Event is the envelope written to the outbox table in the same transaction
// as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
