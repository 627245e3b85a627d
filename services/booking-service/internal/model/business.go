package model

import "time"

type Business struct {
	ID        string
	Slug      string
	Timezone  string
	ManagerID string
	Active    bool
}

// Location resolves the business timezone, falling back to UTC.
func (b Business) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	PriceCents      int64
	Active          bool
	RequiresStaff   bool
	Extras          []ServiceItem
	LineItems       []ServiceItem
}

// ServiceItem is a priced add-on or line item with its own duration.
type ServiceItem struct {
	ID              string
	Name            string
	DurationMinutes int
	PriceCents      int64
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	Active     bool
}

// AvailabilityRule opens a window for booking. Recurring rules repeat every
// Weekday between StartMinute and EndMinute of business-local time; one-off
// rules cover [StartsAt, EndsAt). An empty StaffID applies to all staff.
type AvailabilityRule struct {
	ID          string
	BusinessID  string
	StaffID     string
	Recurring   bool
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	StartsAt    time.Time
	EndsAt      time.Time
	Active      bool
}

// Entitlements is the plan limit billing last granted a business.
type Entitlements struct {
	BusinessID             string
	Tier                   string
	MaxMonthlyAppointments int
}
