// Package memory provides a process-local persistence backend used for tests
// and for deployments that do not need state to survive restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

// Storage keeps schedules and the two singleton slots behind one RWMutex.
type Storage struct {
	mu        sync.RWMutex
	schedules map[string]persistence.ScheduleEntry
	command   persistence.Command
	siren     persistence.SirenStatus
}

// Open returns a Storage initialised with an idle command slot and the siren off.
func Open() *Storage {
	return &Storage{
		schedules: make(map[string]persistence.ScheduleEntry),
		command: persistence.Command{
			Value:      persistence.CommandIdle,
			UpdateMode: persistence.UpdateModeNormal,
		},
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- ScheduleRepository implementation ---

// CreateSchedule stores a new entry.
func (s *Storage) CreateSchedule(ctx context.Context, entry persistence.ScheduleEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[entry.ID]; ok {
		return fmt.Errorf("memory: schedule %s already exists: %w", entry.ID, persistence.ErrConstraintViolation)
	}

	s.schedules[entry.ID] = entry
	return nil
}

// UpdateSchedule replaces an existing entry.
func (s *Storage) UpdateSchedule(ctx context.Context, entry persistence.ScheduleEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[entry.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	entry.CreatedAt = existing.CreatedAt
	s.schedules[entry.ID] = entry
	return nil
}

// GetSchedule retrieves an entry by ID.
func (s *Storage) GetSchedule(ctx context.Context, id string) (persistence.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.schedules[id]
	if !ok {
		return persistence.ScheduleEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

// ListSchedules returns every entry ordered by time of day.
func (s *Storage) ListSchedules(ctx context.Context) ([]persistence.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]persistence.ScheduleEntry, 0, len(s.schedules))
	for _, entry := range s.schedules {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

// DeleteSchedule removes an entry by ID.
func (s *Storage) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// ActiveFor returns the active entries matching day and date.
func (s *Storage) ActiveFor(ctx context.Context, day time.Weekday, date time.Time) ([]persistence.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]persistence.ScheduleEntry, 0)
	for _, entry := range s.schedules {
		if !entry.Active || !entry.Days.Contains(day) {
			continue
		}
		if !recurrence.WithinWindow(date, entry.StartDate, entry.EndDate) {
			continue
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

// --- CommandQueue implementation ---

// Issue overwrites the command slot with a pending ring.
func (s *Storage) Issue(ctx context.Context, source string, issuedAt time.Time, id string) (persistence.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.command.Value = persistence.CommandRing
	s.command.Source = source
	s.command.ID = id
	s.command.IssuedAt = issuedAt
	s.command.Executed = false
	return s.command, nil
}

// Peek returns the command slot.
func (s *Storage) Peek(ctx context.Context) (persistence.Command, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.command, true, nil
}

// Confirm moves a pending ring to idle.
func (s *Storage) Confirm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.command.Value != persistence.CommandRing {
		return nil
	}
	s.command.Value = persistence.CommandIdle
	s.command.Executed = true
	return nil
}

// SetUpdateMode records whether the device should enter firmware update mode.
func (s *Storage) SetUpdateMode(ctx context.Context, mode persistence.UpdateMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.command.UpdateMode = mode
	return nil
}

// --- SirenTracker implementation ---

// SetOn writes both siren fields unconditionally.
func (s *Storage) SetOn(ctx context.Context, on bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.siren = persistence.SirenStatus{IsOn: on, LastActivated: at}
	return nil
}

// GetSiren returns the siren status.
func (s *Storage) GetSiren(ctx context.Context) (persistence.SirenStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.siren, nil
}

func checkEntry(entry persistence.ScheduleEntry) error {
	switch {
	case entry.ID == "":
		return fmt.Errorf("memory: schedule id is empty: %w", persistence.ErrConstraintViolation)
	case !entry.Event.Valid():
		return fmt.Errorf("memory: unknown event kind %q: %w", entry.Event, persistence.ErrConstraintViolation)
	case entry.Days.IsEmpty():
		return fmt.Errorf("memory: schedule %s has no weekdays: %w", entry.ID, persistence.ErrConstraintViolation)
	case recurrence.DateKey(entry.StartDate) > recurrence.DateKey(entry.EndDate):
		return fmt.Errorf("memory: schedule %s window is inverted: %w", entry.ID, persistence.ErrConstraintViolation)
	}
	return nil
}

func sortEntries(entries []persistence.ScheduleEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Time == entries[j].Time {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Time.Before(entries[j].Time)
	})
}
