package core

import "errors"

var (
	// ErrCheckpointNotFound is returned when no checkpoint matches a lookup.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrInvalidRecord is returned for records that fail validation after loading.
	ErrInvalidRecord = errors.New("invalid checkpoint record")
)
