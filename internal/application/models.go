package application

import (
	"context"
	"time"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

// Directive is the answer handed to a polling device.
type Directive struct {
	CurrentTime    recurrence.TimeOfDay
	CurrentDay     string
	ShouldActivate bool
	IsScheduled    bool
	SirenOn        bool
	NextAlarm      *recurrence.TimeOfDay
	// CommandID is the id of the pending ring, empty when none is stored.
	CommandID string
}

// ActivationInput captures the optional fields of a manual "ring now" request.
type ActivationInput struct {
	Duration *int
	Source   *string
}

// ActivationResult describes the ring stored by Activate.
type ActivationResult struct {
	CommandID string
	Source    string
	Duration  time.Duration
	IssuedAt  time.Time
	// Pushed reports whether the device acknowledged the outbound push.
	Pushed bool
}

// ScheduleInput captures caller provided schedule fields in their wire form.
type ScheduleInput struct {
	Event     string   `json:"event_type" validate:"required,oneof=INICIO FIM RECREIO TURNO"`
	Time      string   `json:"time" validate:"required"`
	Days      []string `json:"days_of_week" validate:"required,min=1,max=7,dive,required"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// EventName labels a ring lifecycle event.
type EventName string

const (
	EventRingIssued      EventName = "RING_ISSUED"
	EventScheduledRing   EventName = "SCHEDULED_RING"
	EventRingConfirmed   EventName = "RING_CONFIRMED"
	EventUpdateRequested EventName = "UPDATE_REQUESTED"
	EventUpdateConfirmed EventName = "UPDATE_CONFIRMED"
)

// BellEvent is published whenever the command slot changes.
type BellEvent struct {
	Name          EventName
	Source        string
	CommandID     string
	ScheduleEvent persistence.EventKind
	Duration      time.Duration
	At            time.Time
}

// Ringer pushes an immediate ring to the device. Implementations must honour
// the context deadline and must not retry.
type Ringer interface {
	Ring(ctx context.Context, duration time.Duration, source string) error
}

// EventPublisher delivers ring lifecycle events to observers.
type EventPublisher interface {
	Publish(ctx context.Context, event BellEvent) error
}
