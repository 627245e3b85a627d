package availability

import (
	"iter"
	"time"
)

// Slots enumerates bookable slots of length duration inside windows,
// starting at each window's first whole minute and advancing by step.
func Slots(windows iter.Seq[Interval], duration, step time.Duration) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if duration <= 0 || step <= 0 {
			return
		}
		for w := range windows {
			for t := ceilMinute(w.Start); !t.Add(duration).After(w.End); t = t.Add(step) {
				if !yield(Interval{Start: t, End: t.Add(duration)}) {
					return
				}
			}
		}
	}
}

func ceilMinute(t time.Time) time.Time {
	r := t.Truncate(time.Minute)
	if r.Before(t) {
		r = r.Add(time.Minute)
	}
	return r
}
