package lifecycle

import (
	"testing"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

func TestValidTransition(t *testing.T) {
	all := []model.AppointmentStatus{
		model.StatusScheduled, model.StatusConfirmed, model.StatusCancelled,
		model.StatusRescheduled, model.StatusCompleted, model.StatusNoShow,
	}
	legal := map[[2]model.AppointmentStatus]bool{
		{model.StatusScheduled, model.StatusConfirmed}:   true,
		{model.StatusScheduled, model.StatusCancelled}:   true,
		{model.StatusScheduled, model.StatusRescheduled}: true,
		{model.StatusConfirmed, model.StatusCompleted}:   true,
		{model.StatusConfirmed, model.StatusCancelled}:   true,
		{model.StatusConfirmed, model.StatusNoShow}:      true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := ValidTransition(from, to); got != legal[[2]model.AppointmentStatus{from, to}] {
				t.Fatalf("ValidTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []model.AppointmentStatus{model.StatusCancelled, model.StatusRescheduled, model.StatusCompleted, model.StatusNoShow} {
		if !Terminal(s) {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if Terminal(model.StatusScheduled) || Terminal(model.StatusConfirmed) {
		t.Fatal("scheduled and confirmed are not terminal")
	}
}

func TestTargetsReturnsCopy(t *testing.T) {
	targets := Targets(model.StatusScheduled)
	targets[0] = model.StatusNoShow
	if ValidTransition(model.StatusScheduled, model.StatusNoShow) {
		t.Fatal("mutating Targets result must not change the map")
	}
}
