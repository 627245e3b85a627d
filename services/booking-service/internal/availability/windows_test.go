package availability

import (
	"slices"
	"testing"
	"time"

	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

func weekly(staff string, day time.Weekday, startMin, endMin int) model.AvailabilityRule {
	return model.AvailabilityRule{
		BusinessID:  "biz1",
		StaffID:     staff,
		Recurring:   true,
		Weekday:     day,
		StartMinute: startMin,
		EndMinute:   endMin,
		Active:      true,
	}
}

func workweek(staff string, startMin, endMin int) []model.AvailabilityRule {
	var rules []model.AvailabilityRule
	for d := time.Monday; d <= time.Friday; d++ {
		rules = append(rules, weekly(staff, d, startMin, endMin))
	}
	return rules
}

func TestWindowsNoRulesIsEmpty(t *testing.T) {
	got := slices.Collect(Windows(Plan{
		From: at(0, 0),
		To:   at(23, 0),
	}))
	if len(got) != 0 {
		t.Fatalf("expected no windows, got %v", got)
	}
}

func TestWindowsInactiveRulesIgnored(t *testing.T) {
	r := weekly("", time.Monday, 9*60, 17*60)
	r.Active = false
	got := slices.Collect(Windows(Plan{Rules: []model.AvailabilityRule{r}, From: at(0, 0), To: at(23, 0)}))
	if len(got) != 0 {
		t.Fatalf("expected no windows, got %v", got)
	}
}

func TestWindowsUnionOfGeneralAndStaffRules(t *testing.T) {
	// 2026-03-02 is a Monday.
	rules := append(workweek("", 9*60, 12*60), weekly("s1", time.Monday, 11*60, 14*60))
	got := slices.Collect(Windows(Plan{Rules: rules, From: at(0, 0), To: at(23, 59)}))
	want := []Interval{iv(9, 0, 14, 0)}
	if !equalIntervals(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWindowsSubtractBusy(t *testing.T) {
	got := slices.Collect(Windows(Plan{
		Rules: workweek("", 9*60, 17*60),
		Busy:  []Interval{iv(10, 0, 10, 30)},
		From:  at(0, 0),
		To:    at(23, 59),
	}))
	want := []Interval{iv(9, 0, 10, 0), iv(10, 30, 17, 0)}
	if !equalIntervals(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for _, w := range got {
		if w.Overlaps(iv(10, 0, 10, 30)) {
			t.Fatalf("window %v intersects a commitment", w)
		}
	}
}

func TestWindowsClipToNotBefore(t *testing.T) {
	got := slices.Collect(Windows(Plan{
		Rules:     workweek("", 9*60, 17*60),
		From:      at(0, 0),
		To:        at(23, 59),
		NotBefore: at(12, 20),
	}))
	want := []Interval{iv(12, 20, 17, 0)}
	if !equalIntervals(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWindowsBusinessTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Sunday 2026-03-08 is the spring-forward date in New York; Monday the 9th is EDT (UTC-4).
	from := time.Date(2026, 3, 9, 0, 0, 0, 0, ny)
	got := slices.Collect(Windows(Plan{
		Location: ny,
		Rules:    []model.AvailabilityRule{weekly("", time.Monday, 9*60, 17*60)},
		From:     from,
		To:       from.Add(24 * time.Hour),
	}))
	if len(got) != 1 {
		t.Fatalf("expected one window, got %v", got)
	}
	if got[0].Start.UTC().Hour() != 13 || got[0].End.UTC().Hour() != 21 {
		t.Fatalf("expected 13:00-21:00 UTC, got %s-%s", got[0].Start.UTC(), got[0].End.UTC())
	}
}

func TestWindowsJoinAcrossMidnight(t *testing.T) {
	oneOff := model.AvailabilityRule{
		BusinessID: "biz1",
		StartsAt:   time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
		EndsAt:     time.Date(2026, 3, 3, 4, 0, 0, 0, time.UTC),
		Active:     true,
	}
	got := slices.Collect(Windows(Plan{
		Rules: []model.AvailabilityRule{oneOff},
		From:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	}))
	if len(got) != 1 || !got[0].Start.Equal(oneOff.StartsAt) || !got[0].End.Equal(oneOff.EndsAt) {
		t.Fatalf("expected a single joined window, got %v", got)
	}
}

func TestWindowsIsRestartable(t *testing.T) {
	seq := Windows(Plan{
		Rules: workweek("", 9*60, 17*60),
		From:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	})
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if len(first) != 5 || !equalIntervals(first, second) {
		t.Fatalf("expected 5 identical windows on both passes, got %d and %d", len(first), len(second))
	}
}

func TestCovers(t *testing.T) {
	seq := Windows(Plan{Rules: workweek("", 9*60, 17*60), From: at(0, 0), To: at(23, 59)})
	if !Covers(seq, iv(10, 0, 10, 30)) {
		t.Fatal("expected 10:00-10:30 to be covered")
	}
	if Covers(seq, iv(16, 45, 17, 15)) {
		t.Fatal("window running past closing should not be covered")
	}
}

func TestValidateRule(t *testing.T) {
	cases := []struct {
		name string
		rule model.AvailabilityRule
		ok   bool
	}{
		{"ok", weekly("", time.Monday, 0, 1440), true},
		{"spans midnight", weekly("", time.Monday, 22*60, 26*60), false},
		{"empty", weekly("", time.Monday, 600, 600), false},
		{"bad weekday", weekly("", time.Weekday(7), 60, 120), false},
		{"one-off ok", model.AvailabilityRule{StartsAt: at(9, 0), EndsAt: at(10, 0)}, true},
		{"one-off reversed", model.AvailabilityRule{StartsAt: at(10, 0), EndsAt: at(9, 0)}, false},
	}
	for _, tc := range cases {
		err := ValidateRule(tc.rule)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: err=%v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}
