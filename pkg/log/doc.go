// Package log provides structured protocol event logging for the
// purifier driver.
//
// The driver emits an Event for every datagram, decoded message, state
// change, and error. Applications inject a Logger implementation; the
// driver itself holds no global logging state.
//
// Three implementations ship with the package:
//   - NoopLogger: discards everything (the default)
//   - SlogAdapter: forwards events to a *slog.Logger for development
//   - FileLogger: appends events to a file as a CBOR stream, which
//     ReadEvents can load back for offline protocol analysis
package log
