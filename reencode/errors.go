package reencode

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrSourceRequired is returned when a source journal is not provided.
	ErrSourceRequired = errors.New("source journal required")

	// ErrTargetRequired is returned when a target index is not provided.
	ErrTargetRequired = errors.New("target index required")
)
