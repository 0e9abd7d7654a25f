package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when an index is not provided.
	ErrIndexRequired = errors.New("index required")

	// ErrPipelineReleased is returned when ingesting through a released pipeline.
	ErrPipelineReleased = errors.New("pipeline released")
)
