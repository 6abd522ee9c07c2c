package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/school-bell/internal/persistence"
)

// CommandRepository implements persistence.CommandQueue on the command_slot row.
type CommandRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCommandRepository creates a new SQLite command repository
func NewCommandRepository(pool *ConnectionPool) *CommandRepository {
	return &CommandRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// Issue upserts the slot with a pending ring in a single statement.
func (r *CommandRepository) Issue(ctx context.Context, source string, issuedAt time.Time, id string) (persistence.Command, error) {
	query := `
		INSERT INTO command_slot (id, value, source, command_id, issued_at, executed)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			command_id = excluded.command_id,
			issued_at = excluded.issued_at,
			executed = 0
		RETURNING update_mode
	`

	var mode string
	err := r.helper.QueryRow(ctx, query,
		singletonID,
		string(persistence.CommandRing),
		source,
		id,
		formatTimestamp(issuedAt),
	).Scan(&mode)
	if err != nil {
		return persistence.Command{}, r.mapper.MapError(err)
	}

	return persistence.Command{
		Value:      persistence.CommandRing,
		Source:     source,
		ID:         id,
		IssuedAt:   issuedAt,
		UpdateMode: persistence.UpdateMode(mode),
	}, nil
}

// Peek returns the slot without modifying it.
func (r *CommandRepository) Peek(ctx context.Context) (persistence.Command, bool, error) {
	query := `
		SELECT value, source, command_id, issued_at, executed, update_mode
		FROM command_slot
		WHERE id = ?
	`

	var (
		cmd             persistence.Command
		value, issuedAt string
		mode            string
		executed        int
	)
	err := r.helper.QueryRow(ctx, query, singletonID).Scan(&value, &cmd.Source, &cmd.ID, &issuedAt, &executed, &mode)
	if err != nil {
		mapped := r.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return persistence.Command{}, false, nil
		}
		return persistence.Command{}, false, mapped
	}

	cmd.Value = persistence.CommandValue(value)
	cmd.Executed = executed == 1
	cmd.UpdateMode = persistence.UpdateMode(mode)
	if cmd.IssuedAt, err = parseTimestamp(issuedAt); err != nil {
		return persistence.Command{}, false, fmt.Errorf("command slot: invalid issued_at: %w", err)
	}
	return cmd, true, nil
}

// Confirm moves a pending ring to idle. Idle or missing slots are left untouched.
func (r *CommandRepository) Confirm(ctx context.Context) error {
	query := `UPDATE command_slot SET value = ?, executed = 1 WHERE id = ? AND value = ?`
	if _, err := r.helper.Exec(ctx, query, string(persistence.CommandIdle), singletonID, string(persistence.CommandRing)); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// SetUpdateMode records the firmware update flag, creating an idle slot if needed.
func (r *CommandRepository) SetUpdateMode(ctx context.Context, mode persistence.UpdateMode) error {
	query := `
		INSERT INTO command_slot (id, value, update_mode) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET update_mode = excluded.update_mode
	`
	if _, err := r.helper.Exec(ctx, query, singletonID, string(persistence.CommandIdle), string(mode)); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}
