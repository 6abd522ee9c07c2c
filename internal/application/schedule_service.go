package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

// ScheduleService validates and persists weekly schedule entries.
//
// Create and Update always store the entry as active. Disable is the only way
// to deactivate an entry.
type ScheduleService struct {
	schedules   persistence.ScheduleRepository
	engine      *recurrence.Engine
	codes       recurrence.DayCodes
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(schedules persistence.ScheduleRepository, engine *recurrence.Engine, codes recurrence.DayCodes, idGenerator func() string, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(schedules, engine, codes, idGenerator, now, nil)
}

// NewScheduleServiceWithLogger constructs a schedule service with a specified logger.
func NewScheduleServiceWithLogger(schedules persistence.ScheduleRepository, engine *recurrence.Engine, codes recurrence.DayCodes, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if codes == (recurrence.DayCodes{}) {
		codes = recurrence.DefaultDayCodes
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		schedules:   schedules,
		engine:      engine,
		codes:       codes,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		validate:    newValidator(),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// DayCodes exposes the weekday code table used to parse and render entries.
func (s *ScheduleService) DayCodes() recurrence.DayCodes {
	return s.codes
}

// CreateSchedule validates input and stores a new active entry.
func (s *ScheduleService) CreateSchedule(ctx context.Context, input ScheduleInput) (entry persistence.ScheduleEntry, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateSchedule", "event_type", input.Event)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("schedule_id", entry.ID).InfoContext(ctx, "schedule created")
	}()

	entry, err = s.parseInput(input)
	if err != nil {
		return
	}

	createdAt := s.now()
	entry.ID = s.idGenerator()
	entry.Active = true
	entry.CreatedAt = createdAt
	entry.UpdatedAt = createdAt

	if s.schedules == nil {
		err = fmt.Errorf("schedule repository not configured")
		entry = persistence.ScheduleEntry{}
		return
	}
	if createErr := s.schedules.CreateSchedule(ctx, entry); createErr != nil {
		err = mapScheduleRepoError(createErr)
		entry = persistence.ScheduleEntry{}
	}
	return
}

// UpdateSchedule replaces the fields of an existing entry and reactivates it.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id string, input ScheduleInput) (entry persistence.ScheduleEntry, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.schedules == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSchedule", "schedule_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule updated")
	}()

	existing, getErr := s.schedules.GetSchedule(ctx, id)
	if getErr != nil {
		err = mapScheduleRepoError(getErr)
		return
	}

	entry, err = s.parseInput(input)
	if err != nil {
		return
	}
	entry.ID = existing.ID
	entry.Active = true
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = s.now()

	if updateErr := s.schedules.UpdateSchedule(ctx, entry); updateErr != nil {
		err = mapScheduleRepoError(updateErr)
		entry = persistence.ScheduleEntry{}
	}
	return
}

// DisableSchedule marks an entry inactive. It stops matching on the next read.
func (s *ScheduleService) DisableSchedule(ctx context.Context, id string) (entry persistence.ScheduleEntry, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}
	if s.schedules == nil {
		err = fmt.Errorf("schedule repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "DisableSchedule", "schedule_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to disable schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule disabled")
	}()

	entry, err = s.schedules.GetSchedule(ctx, id)
	if err != nil {
		err = mapScheduleRepoError(err)
		return
	}
	if !entry.Active {
		return
	}

	entry.Active = false
	entry.UpdatedAt = s.now()
	if updateErr := s.schedules.UpdateSchedule(ctx, entry); updateErr != nil {
		err = mapScheduleRepoError(updateErr)
		entry = persistence.ScheduleEntry{}
	}
	return
}

// GetSchedule returns one entry by id.
func (s *ScheduleService) GetSchedule(ctx context.Context, id string) (persistence.ScheduleEntry, error) {
	if s == nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule repository not configured")
	}
	entry, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return persistence.ScheduleEntry{}, mapScheduleRepoError(err)
	}
	return entry, nil
}

// ListSchedules returns every entry ordered by time of day.
func (s *ScheduleService) ListSchedules(ctx context.Context) ([]persistence.ScheduleEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return nil, nil
	}
	entries, err := s.schedules.ListSchedules(ctx)
	if err != nil {
		return nil, mapScheduleRepoError(err)
	}
	return entries, nil
}

// TodaySchedules returns the entries that ring today, in time order.
func (s *ScheduleService) TodaySchedules(ctx context.Context) ([]persistence.ScheduleEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return nil, nil
	}
	now := s.engine.Local(s.now())
	entries, err := s.schedules.ActiveFor(ctx, now.Weekday(), s.engine.Date(now))
	if err != nil {
		return nil, mapScheduleRepoError(err)
	}
	return entries, nil
}

// DeleteSchedule removes an entry permanently.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return fmt.Errorf("schedule repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSchedule", "schedule_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule deleted")
	}()

	if deleteErr := s.schedules.DeleteSchedule(ctx, id); deleteErr != nil {
		err = mapScheduleRepoError(deleteErr)
	}
	return
}

// parseInput validates the wire form and converts it to an entry without id or timestamps.
func (s *ScheduleService) parseInput(input ScheduleInput) (persistence.ScheduleEntry, error) {
	input.Event = strings.ToUpper(strings.TrimSpace(input.Event))
	input.Time = strings.TrimSpace(input.Time)
	input.StartDate = strings.TrimSpace(input.StartDate)
	input.EndDate = strings.TrimSpace(input.EndDate)

	vErr := validateStruct(s.validate, input)

	var entry persistence.ScheduleEntry
	entry.Event = persistence.EventKind(input.Event)

	if _, failed := vErr.FieldErrors["time"]; !failed {
		at, err := recurrence.ParseTimeOfDay(input.Time)
		if err != nil {
			vErr.add("time", "time must be HH:MM")
		}
		entry.Time = at
	}

	if _, failed := vErr.FieldErrors["days_of_week"]; !failed {
		days, err := s.codes.ParseSet(input.Days)
		if err != nil {
			vErr.add("days_of_week", "days_of_week contains an unknown day")
		}
		entry.Days = days
	}

	_, startFailed := vErr.FieldErrors["start_date"]
	_, endFailed := vErr.FieldErrors["end_date"]
	if !startFailed && !endFailed {
		start, startErr := s.engine.ParseDate(input.StartDate)
		end, endErr := s.engine.ParseDate(input.EndDate)
		switch {
		case startErr != nil:
			vErr.add("start_date", "start_date must be a date in YYYY-MM-DD form")
		case endErr != nil:
			vErr.add("end_date", "end_date must be a date in YYYY-MM-DD form")
		case end.Before(start):
			vErr.add("end_date", "end_date must not be before start_date")
		}
		entry.StartDate = start
		entry.EndDate = end
	}

	if vErr.HasErrors() {
		return persistence.ScheduleEntry{}, vErr
	}
	return entry, nil
}

func mapScheduleRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return ErrAlreadyExists
	}
	return storageError("schedule repository", err)
}
