package domain

import "errors"

var (
	// ErrConfigurationEmpty is returned by start when there is nothing to
	// block. It is a declined no-op, not a failure.
	ErrConfigurationEmpty = errors.New("nothing to block")

	// ErrEngineRejected is returned when the blocking engine refuses a rule batch.
	ErrEngineRejected = errors.New("blocking engine rejected rule batch")

	// ErrStoreUnavailable is returned when the persistent store cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAlarmUnavailable is returned when the alarm service cannot schedule an alarm.
	ErrAlarmUnavailable = errors.New("alarm service unavailable")
)
