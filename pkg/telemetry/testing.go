// ABOUTME: No-op telemetry constructors for tests - no business logic mocking
// ABOUTME: Lets tests run real components with telemetry fully disabled

package telemetry

// NewForTesting returns a no-op telemetry instance for use in tests.
func NewForTesting() Telemetry {
	return NewNoop()
}

// NewDisabled is an alias for NewNoop for call sites that want to be
// explicit about telemetry being off.
func NewDisabled() Telemetry {
	return NewNoop()
}
