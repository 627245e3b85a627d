package lifecycle

import "github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"

var transitionMap = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.StatusScheduled: {model.StatusConfirmed, model.StatusCancelled, model.StatusRescheduled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
}

// ValidTransition reports whether from -> to is an edge of the appointment
// state machine.
func ValidTransition(from, to model.AppointmentStatus) bool {
	for _, status := range transitionMap[from] {
		if status == to {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func Terminal(s model.AppointmentStatus) bool {
	return len(transitionMap[s]) == 0
}

// Targets lists the statuses reachable from s in one step.
func Targets(s model.AppointmentStatus) []model.AppointmentStatus {
	return append([]model.AppointmentStatus(nil), transitionMap[s]...)
}
