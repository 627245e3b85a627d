package availability

import (
	"errors"
	"iter"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

const minutesPerDay = 24 * 60

// ValidateRule checks a rule before it is stored. Recurring windows live
// inside one business-local day.
func ValidateRule(r model.AvailabilityRule) error {
	if r.Recurring {
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return errors.New("weekday must be 0..6")
		}
		if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.StartMinute >= r.EndMinute {
			return errors.New("recurring window must satisfy 0 <= start_minute < end_minute <= 1440")
		}
		return nil
	}
	if r.StartsAt.IsZero() || r.EndsAt.IsZero() || !r.EndsAt.After(r.StartsAt) {
		return errors.New("one-off window must have starts_at before ends_at")
	}
	return nil
}

// Plan is everything needed to compute open windows for one resource.
type Plan struct {
	Location *time.Location
	// Rules that apply to the queried resource: general rules plus the
	// staff member's own.
	Rules []model.AvailabilityRule
	// Busy holds the windows of blocking appointments.
	Busy []Interval
	From time.Time
	To   time.Time
	// NotBefore clips out the past; zero disables it.
	NotBefore time.Time
}

// Windows returns the open windows of p in ascending order. The sequence
// is computed one business-local day at a time and may be ranged over
// again. Windows that touch across midnight are joined.
func Windows(p Plan) iter.Seq[Interval] {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	lo, hi := p.From, p.To
	if p.NotBefore.After(lo) {
		lo = p.NotBefore
	}
	rules := make([]model.AvailabilityRule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.Active {
			rules = append(rules, r)
		}
	}
	busy := Union(p.Busy)

	return func(yield func(Interval) bool) {
		if !hi.After(lo) || len(rules) == 0 {
			return
		}
		var pending Interval
		have := false
		push := func(w Interval) bool {
			if have && !w.Start.After(pending.End) {
				if w.End.After(pending.End) {
					pending.End = w.End
				}
				return true
			}
			if have && !yield(pending) {
				return false
			}
			pending, have = w, true
			return true
		}

		l := lo.In(loc)
		day := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
		for day.Before(hi) {
			next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
			open := Clip(Subtract(ruleWindows(rules, day, next), busy), lo, hi)
			for _, w := range open {
				if !push(w) {
					return
				}
			}
			day = next
		}
		if have {
			yield(pending)
		}
	}
}

// ruleWindows expands rules for the local day [day, next) and unions them.
func ruleWindows(rules []model.AvailabilityRule, day, next time.Time) []Interval {
	var out []Interval
	for _, r := range rules {
		if r.Recurring {
			if r.Weekday != day.Weekday() {
				continue
			}
			out = append(out, Interval{
				Start: time.Date(day.Year(), day.Month(), day.Day(), 0, r.StartMinute, 0, 0, day.Location()),
				End:   time.Date(day.Year(), day.Month(), day.Day(), 0, r.EndMinute, 0, 0, day.Location()),
			})
			continue
		}
		out = append(out, Clip([]Interval{{Start: r.StartsAt, End: r.EndsAt}}, day, next)...)
	}
	return Union(out)
}

// Covers reports whether some window fully contains want.
func Covers(windows iter.Seq[Interval], want Interval) bool {
	for w := range windows {
		if w.Contains(want) {
			return true
		}
		if !w.Start.Before(want.End) {
			return false
		}
	}
	return false
}
