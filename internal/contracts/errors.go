package contracts

import "errors"

// Error taxonomy shared across the core. Callers test with errors.Is;
// transient store failures are wrapped with %w and propagated, never
// retried inside the core.
var (
	// ErrKindNotConfigured means the threshold catalog has no entry for a
	// sensor kind. A configuration fault, not a per-reading condition.
	ErrKindNotConfigured = errors.New("sensor kind not configured")

	ErrAlertNotFound = errors.New("alert not found")
	ErrZoneNotFound  = errors.New("zone not found")

	// ErrScopeRequired is returned for subscription calls with an empty
	// building or zone id. An empty building doubles as the "no building
	// subscription" marker internally, so it is never a valid key.
	ErrScopeRequired = errors.New("building or zone id is required")

	// ErrConnectionClosed is returned for subscription calls racing a
	// disconnect. Safe to ignore; a reconnect uses a fresh connection id.
	ErrConnectionClosed = errors.New("connection closed")
)
