package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that applying a migration failed.
	ErrMigrationFailed = errors.New("migration execution failed")

	// ErrInvalidMigrationFile indicates a misnamed, empty, or statement-less file.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")

	// ErrDuplicateVersion indicates that two embedded files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")

	// ErrChecksumMismatch indicates an applied migration file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// Error records which migration step failed. File is empty for failures
// raised by the database rather than by an embedded file.
type Error struct {
	Version string
	File    string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Version != "" && e.File != "":
		where = fmt.Sprintf("migration %s (%s)", e.Version, e.File)
	case e.Version != "":
		where = "migration " + e.Version
	case e.File != "":
		where = "migration " + e.File
	default:
		where = "migration"
	}
	return fmt.Sprintf("%s: %s: %v", where, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fileError(version, file, op string, err error) *Error {
	return &Error{Version: version, File: file, Op: op, Err: err}
}

func dbError(version, op string, err error) *Error {
	return &Error{Version: version, Op: op, Err: err}
}
