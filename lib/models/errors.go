package models

import "errors"

var (
	// ErrValidation marks malformed user input. Always recoverable.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAdapter marks a transient failure talking to the content source.
	ErrAdapter = errors.New("source unavailable")
	// ErrStore marks a constraint violation or I/O failure in the database.
	ErrStore = errors.New("store failure")
)
