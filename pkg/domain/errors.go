package domain

import "fmt"

// ConnectionError reports a failure to open or create a database.
type ConnectionError struct {
	Database string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open database %q: %v", e.Database, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BlockedDeleteError reports that a database could not be deleted because a
// live connection to it still exists. The deletion does not proceed, but the
// condition is not fatal to the caller.
type BlockedDeleteError struct {
	Database string
}

func (e *BlockedDeleteError) Error() string {
	return fmt.Sprintf("delete of database %q blocked by an open connection", e.Database)
}

// CursorError reports a read failure while iterating a store during export.
type CursorError struct {
	Store string
	Err   error
}

func (e *CursorError) Error() string {
	return fmt.Sprintf("cursor failed on store %q: %v", e.Store, e.Err)
}

func (e *CursorError) Unwrap() error { return e.Err }

// WriteError reports a write failure while restoring a store during import.
type WriteError struct {
	Store string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed on store %q: %v", e.Store, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FormatError reports that an import document is missing required structure.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid snapshot document: %s", e.Reason)
}
