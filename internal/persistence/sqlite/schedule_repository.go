package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

const scheduleColumns = `id, event_type, time_minutes, weekdays, start_date, end_date, active, created_at, updated_at`

// ScheduleRepository implements persistence.ScheduleRepository using SQLite
type ScheduleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewScheduleRepository creates a new SQLite schedule repository
func NewScheduleRepository(pool *ConnectionPool) *ScheduleRepository {
	return &ScheduleRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSchedule inserts a new entry.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, entry persistence.ScheduleEntry) error {
	if entry.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		entry.ID,
		string(entry.Event),
		entry.Time.Minutes(),
		entry.Days.Mask(),
		recurrence.DateKey(entry.StartDate),
		recurrence.DateKey(entry.EndDate),
		boolToInt(entry.Active),
		formatTimestamp(entry.CreatedAt),
		formatTimestamp(entry.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateSchedule replaces every mutable column of an existing entry.
func (r *ScheduleRepository) UpdateSchedule(ctx context.Context, entry persistence.ScheduleEntry) error {
	if entry.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE schedules
		SET event_type = ?, time_minutes = ?, weekdays = ?, start_date = ?, end_date = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		string(entry.Event),
		entry.Time.Minutes(),
		entry.Days.Mask(),
		recurrence.DateKey(entry.StartDate),
		recurrence.DateKey(entry.EndDate),
		boolToInt(entry.Active),
		formatTimestamp(entry.UpdatedAt),
		entry.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetSchedule retrieves an entry by ID.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.ScheduleEntry, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	entry, err := scanSchedule(row)
	if err != nil {
		return persistence.ScheduleEntry{}, r.mapper.MapError(err)
	}
	return entry, nil
}

// ListSchedules returns every entry ordered by time of day.
func (r *ScheduleRepository) ListSchedules(ctx context.Context) ([]persistence.ScheduleEntry, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY time_minutes ASC, id ASC`)
}

// DeleteSchedule removes an entry by ID.
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ActiveFor returns active entries for day whose window contains date.
func (r *ScheduleRepository) ActiveFor(ctx context.Context, day time.Weekday, date time.Time) ([]persistence.ScheduleEntry, error) {
	key := recurrence.DateKey(date)
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE active = 1 AND start_date <= ? AND end_date >= ? AND (weekdays & ?) != 0
		ORDER BY time_minutes ASC, id ASC
	`
	return r.query(ctx, query, key, key, recurrence.NewWeekdaySet(day).Mask())
}

func (r *ScheduleRepository) query(ctx context.Context, query string, args ...any) ([]persistence.ScheduleEntry, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	entries := make([]persistence.ScheduleEntry, 0)
	for rows.Next() {
		entry, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (persistence.ScheduleEntry, error) {
	var (
		entry                persistence.ScheduleEntry
		event                string
		minutes, mask        int
		startDate, endDate   string
		active               int
		createdAt, updatedAt string
	)

	if err := row.Scan(&entry.ID, &event, &minutes, &mask, &startDate, &endDate, &active, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return persistence.ScheduleEntry{}, err
		}
		return persistence.ScheduleEntry{}, fmt.Errorf("failed to scan schedule: %w", err)
	}

	var err error
	entry.Event = persistence.EventKind(event)
	if entry.Time, err = recurrence.TimeOfDayFromMinutes(minutes); err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule %s: %w", entry.ID, err)
	}
	if entry.Days, err = recurrence.WeekdaySetFromMask(mask); err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule %s: %w", entry.ID, err)
	}
	if entry.StartDate, err = time.Parse(recurrence.DateLayout, startDate); err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule %s: invalid start_date: %w", entry.ID, err)
	}
	if entry.EndDate, err = time.Parse(recurrence.DateLayout, endDate); err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule %s: invalid end_date: %w", entry.ID, err)
	}
	entry.Active = active == 1
	if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule %s: invalid created_at: %w", entry.ID, err)
	}
	if entry.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("schedule %s: invalid updated_at: %w", entry.ID, err)
	}

	return entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
