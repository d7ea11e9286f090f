package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrChipNotConnected    = errors.New("chip is not connected")
	ErrAlreadyInitializing = errors.New("chip is already initializing")
	ErrWarmupNotRunning    = errors.New("no chip with warmup in progress")
	ErrNotEnoughChips      = errors.New("not enough connected chips for warmup")
	ErrLockNotAcquired     = errors.New("could not acquire lock")
	ErrQueueFull           = errors.New("session queue is full")

	// Repository-layer errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
