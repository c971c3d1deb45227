package store

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateTrigger is returned when a trigger's dedup token was already enqueued
	ErrDuplicateTrigger = errors.New("trigger already enqueued")

	// ErrNoTriggersAvailable is returned when the queue has no pending triggers
	ErrNoTriggersAvailable = errors.New("no triggers available")

	// ErrAtCapacity is returned when max_concurrent_experiments are already in flight
	ErrAtCapacity = errors.New("at maximum concurrent experiments")
)
