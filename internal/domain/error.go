package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrGenerationFailed = errors.New("ai generation failed")
	ErrQueueFull        = errors.New("worker queue full")
)
