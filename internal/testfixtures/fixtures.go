package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

var scheduleCounter uint64

// Location is the fixed UTC-3 zone fixtures are expressed in.
var Location = time.FixedZone("BRT", -3*60*60)

// referenceTime is Tuesday 2024-03-05 09:50:00 in Location.
var referenceTime = time.Date(2024, time.March, 5, 9, 50, 0, 0, Location)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date returns midnight of the given day in Location.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}

// At returns the given wall clock time in Location.
func At(year int, month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, Location)
}

// ScheduleFixture represents a deterministic schedule entry.
type ScheduleFixture struct {
	ID        string
	Event     persistence.EventKind
	Time      recurrence.TimeOfDay
	Days      recurrence.WeekdaySet
	StartDate time.Time
	EndDate   time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns an active weekday 07:30 class-start entry valid
// for the whole of 2024, with optional overrides.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := ScheduleFixture{
		ID:        fmt.Sprintf("schedule-%03d", idx),
		Event:     persistence.EventClassStart,
		Time:      recurrence.TimeOfDay{Hour: 7, Minute: 30},
		Days:      recurrence.NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
		StartDate: Date(2024, time.January, 1),
		EndDate:   Date(2024, time.December, 31),
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ID = id
	}
}

// WithEvent overrides the event kind.
func WithEvent(kind persistence.EventKind) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Event = kind
	}
}

// WithTime overrides the time of day.
func WithTime(hour, minute int) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Time = recurrence.TimeOfDay{Hour: hour, Minute: minute}
	}
}

// WithDays replaces the weekday set.
func WithDays(days ...time.Weekday) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Days = recurrence.NewWeekdaySet(days...)
	}
}

// WithWindow overrides the validity window.
func WithWindow(start, end time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithActive sets the active flag.
func WithActive(active bool) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Active = active
	}
}

// Persistence returns the fixture as a persistence.ScheduleEntry value.
func (f ScheduleFixture) Persistence() persistence.ScheduleEntry {
	return persistence.ScheduleEntry{
		ID:        f.ID,
		Event:     f.Event,
		Time:      f.Time,
		Days:      f.Days,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
