package persistence

import (
	"time"

	"github.com/example/school-bell/internal/recurrence"
)

// EventKind classifies why a scheduled ring happens.
type EventKind string

const (
	EventClassStart  EventKind = "INICIO"
	EventClassEnd    EventKind = "FIM"
	EventRecess      EventKind = "RECREIO"
	EventShiftChange EventKind = "TURNO"
)

// EventKinds lists every supported kind in display order.
var EventKinds = []EventKind{EventClassStart, EventClassEnd, EventRecess, EventShiftChange}

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventClassStart, EventClassEnd, EventRecess, EventShiftChange:
		return true
	}
	return false
}

// Label returns the human readable name shown to operators.
func (k EventKind) Label() string {
	switch k {
	case EventClassStart:
		return "Início de Aula"
	case EventClassEnd:
		return "Fim de Aula"
	case EventRecess:
		return "Recreio"
	case EventShiftChange:
		return "Troca de Turno"
	}
	return string(k)
}

// ScheduleEntry is a weekly recurring ring with a validity window.
// StartDate and EndDate are calendar days; only their date part is stored.
type ScheduleEntry struct {
	ID        string
	Event     EventKind
	Time      recurrence.TimeOfDay
	Days      recurrence.WeekdaySet
	StartDate time.Time
	EndDate   time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommandValue is the state of the command slot.
type CommandValue string

const (
	CommandRing CommandValue = "RING"
	CommandIdle CommandValue = "IDLE"
)

// UpdateMode tells the device whether to enter firmware update mode.
type UpdateMode string

const (
	UpdateModeNormal  UpdateMode = "normal"
	UpdateModePending UpdateMode = "update"
)

// Command is the single command slot shared by operators, the ticker and the device.
type Command struct {
	Value      CommandValue
	Source     string
	ID         string
	IssuedAt   time.Time
	Executed   bool
	UpdateMode UpdateMode
}

// Pending reports whether a ring is waiting for the device.
func (c Command) Pending() bool {
	return c.Value == CommandRing
}

// SirenStatus is the last known siren state. LastActivated records the last
// write, not the last transition to on.
type SirenStatus struct {
	IsOn          bool
	LastActivated time.Time
}
