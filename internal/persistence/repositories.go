package persistence

import (
	"context"
	"time"
)

// ScheduleRepository stores weekly schedule entries.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, entry ScheduleEntry) error
	UpdateSchedule(ctx context.Context, entry ScheduleEntry) error
	GetSchedule(ctx context.Context, id string) (ScheduleEntry, error)
	ListSchedules(ctx context.Context) ([]ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, id string) error
	// ActiveFor returns active entries whose window contains date and whose
	// weekday set contains day, ordered by time of day then id.
	ActiveFor(ctx context.Context, day time.Weekday, date time.Time) ([]ScheduleEntry, error)
}

// CommandQueue stores the single command slot.
type CommandQueue interface {
	// Issue overwrites the slot with a pending ring.
	Issue(ctx context.Context, source string, issuedAt time.Time, id string) (Command, error)
	// Peek returns the slot; the boolean is false when no slot exists yet.
	Peek(ctx context.Context) (Command, bool, error)
	// Confirm marks a pending ring as executed. Confirming an idle slot is a no-op.
	Confirm(ctx context.Context) error
	SetUpdateMode(ctx context.Context, mode UpdateMode) error
}

// SirenTracker stores the single siren status record.
type SirenTracker interface {
	SetOn(ctx context.Context, on bool, at time.Time) error
	GetSiren(ctx context.Context) (SirenStatus, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	ScheduleRepository
	CommandQueue
	SirenTracker
	Migrate(ctx context.Context) error
	Close() error
}
