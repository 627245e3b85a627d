package availability

import (
	"slices"
	"time"
)

// Interval is a half-open window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Empty() bool { return !i.End.After(i.Start) }

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Union merges overlapping or touching intervals into a sorted disjoint set.
func Union(in []Interval) []Interval {
	ivs := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			ivs = append(ivs, iv)
		}
	}
	slices.SortFunc(ivs, func(a, b Interval) int { return a.Start.Compare(b.Start) })

	out := ivs[:0]
	for _, iv := range ivs {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes busy from base. base must be sorted and disjoint.
func Subtract(base, busy []Interval) []Interval {
	busy = Union(busy)
	var out []Interval
	for _, b := range base {
		cur := b.Start
		for _, x := range busy {
			if !x.End.After(cur) {
				continue
			}
			if !x.Start.Before(b.End) {
				break
			}
			if x.Start.After(cur) {
				out = append(out, Interval{Start: cur, End: x.Start})
			}
			if x.End.After(cur) {
				cur = x.End
			}
		}
		if b.End.After(cur) {
			out = append(out, Interval{Start: cur, End: b.End})
		}
	}
	return out
}

// Clip bounds every interval to [lo, hi) and drops what falls outside.
func Clip(ivs []Interval, lo, hi time.Time) []Interval {
	var out []Interval
	for _, iv := range ivs {
		if iv.Start.Before(lo) {
			iv.Start = lo
		}
		if iv.End.After(hi) {
			iv.End = hi
		}
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	return out
}

// OverlapsAny reports whether w intersects any of busy.
func OverlapsAny(w Interval, busy []Interval) bool {
	for _, b := range busy {
		if w.Overlaps(b) {
			return true
		}
	}
	return false
}
