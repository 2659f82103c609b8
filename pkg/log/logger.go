package log

// Logger receives protocol events from the driver. Pass nil or
// NoopLogger to disable protocol logging.
type Logger interface {
	// Log records one protocol event. Implementations must be safe for
	// concurrent use and should return quickly; the driver calls Log
	// from its network loops.
	Log(event Event)
}

// NoopLogger discards all events. Usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
