package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// ErrActiveAccountConflict indicates the at-most-one-active invariant was broken
// in the persistence layer. A store returning this means a bug, not a user error,
// so it must never be swallowed.
type ErrActiveAccountConflict struct {
	ChatUserID int64
	Count      int
}

func (e *ErrActiveAccountConflict) Error() string {
	return fmt.Sprintf("user %d has %d active accounts, expected at most one", e.ChatUserID, e.Count)
}

// Remote API errors

type ErrRemoteAPI struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *ErrRemoteAPI) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote API call to %s failed with status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("remote API call to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ErrRemoteAPI) Unwrap() error {
	return e.Err
}

// ErrOTPRejected is the domain-level negative result for a wrong OTP code.
// It feeds the login dialog's retry budget instead of aborting the flow.
type ErrOTPRejected struct {
	PhoneNumber string
}

func (e *ErrOTPRejected) Error() string {
	return fmt.Sprintf("OTP code rejected for %s", e.PhoneNumber)
}

// Catalog errors

type ErrCatalogLoad struct {
	Path string
	Err  error
}

func (e *ErrCatalogLoad) Error() string {
	return fmt.Sprintf("failed to load catalog %s: %v", e.Path, e.Err)
}

func (e *ErrCatalogLoad) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}
