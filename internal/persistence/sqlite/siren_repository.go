package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/school-bell/internal/persistence"
)

// SirenRepository implements persistence.SirenTracker on the siren_status row.
type SirenRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSirenRepository creates a new SQLite siren repository
func NewSirenRepository(pool *ConnectionPool) *SirenRepository {
	return &SirenRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// SetOn writes both fields unconditionally.
func (r *SirenRepository) SetOn(ctx context.Context, on bool, at time.Time) error {
	query := `
		INSERT INTO siren_status (id, is_on, last_activated) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_on = excluded.is_on, last_activated = excluded.last_activated
	`
	if _, err := r.helper.Exec(ctx, query, singletonID, boolToInt(on), formatTimestamp(at)); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetSiren returns the siren status. A missing row reads as off.
func (r *SirenRepository) GetSiren(ctx context.Context) (persistence.SirenStatus, error) {
	var (
		isOn          int
		lastActivated string
	)
	err := r.helper.QueryRow(ctx, `SELECT is_on, last_activated FROM siren_status WHERE id = ?`, singletonID).Scan(&isOn, &lastActivated)
	if err != nil {
		mapped := r.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return persistence.SirenStatus{}, nil
		}
		return persistence.SirenStatus{}, mapped
	}

	at, err := parseTimestamp(lastActivated)
	if err != nil {
		return persistence.SirenStatus{}, fmt.Errorf("siren status: invalid last_activated: %w", err)
	}
	return persistence.SirenStatus{IsOn: isOn == 1, LastActivated: at}, nil
}
