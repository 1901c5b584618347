package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Job lifecycle
	ErrJobWithNoInput = errors.New("job references no journal entries")

	// Notification delivery
	ErrNoDeviceRegistered    = errors.New("no device registered for channel")
	ErrMissingRecipientEmail = errors.New("user has no email address")
	ErrMissingTimezone       = errors.New("user has no timezone set")
)
