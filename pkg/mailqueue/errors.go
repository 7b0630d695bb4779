package mailqueue

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrDispatcherNil is returned when a scheduler is built without a dispatcher
	ErrDispatcherNil = errors.New("dispatcher cannot be nil")

	// ErrInvalidItem is returned when enqueue input fails validation
	ErrInvalidItem = errors.New("invalid queue item")

	// ErrInvalidConfig is returned when a queue configuration value is out of range
	ErrInvalidConfig = errors.New("invalid queue configuration")

	// ErrNotFound is returned when no item exists for the given id
	ErrNotFound = errors.New("queue item not found")

	// ErrNotFailed is returned when resetting an item that is not in the failed state
	ErrNotFailed = errors.New("queue item is not in failed state")

	// ErrConflict is returned by stores when the item's status changed since it was read.
	// The dispatcher treats it as "claimed by someone else".
	ErrConflict = errors.New("queue item was modified concurrently")

	// ErrAlreadyExists is returned when inserting an item whose id is taken
	ErrAlreadyExists = errors.New("queue item already exists")

	// ErrInvalidTransition is returned when a status change is not part of the lifecycle
	ErrInvalidTransition = errors.New("invalid queue item status transition")

	// ErrUnknownKind is recorded on items whose kind has no registered sender
	ErrUnknownKind = errors.New("no sender registered for message kind")

	// ErrSendTimeout is recorded when a sender does not return within the send timeout
	ErrSendTimeout = errors.New("send timed out")

	// ErrSchedulerRunning is returned when starting a scheduler twice
	ErrSchedulerRunning = errors.New("scheduler already started")

	// ErrSchedulerNotRunning is returned when stopping a scheduler that was not started
	ErrSchedulerNotRunning = errors.New("scheduler not started")
)
