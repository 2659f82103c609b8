// Package transport implements the UDP session layer of the purifier
// protocol.
//
// The purifier speaks a CoAP-style datagram protocol on a fixed port:
//
//	┌────────────────────────────────┐
//	│     token=value messages       │
//	├────────────────────────────────┤
//	│      one message per datagram  │
//	├────────────────────────────────┤
//	│            UDP :5683           │
//	└────────────────────────────────┘
//
// A Session owns one socket to one device. Opening it performs the
// sync handshake that yields the device session token. The session
// then supports a one-shot status fetch with bounded retry and a
// long-lived observe stream of status snapshots.
//
// # Observe recovery
//
// The observe stream recovers from transport errors, malformed frames,
// and device restarts (signalled by a changed session token) by
// re-subscribing behind the consumer's back, with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase with jitter
//  3. Maximum delay: 30 seconds
//  4. Budget: 20 consecutive failed attempts, then the stream ends
//     with ErrObserveFailed
//
// Duplicate deliveries are dropped using the notification sequence
// before snapshots reach the consumer.
//
// # Commands
//
// A Commander owns a second socket so that control mutations never
// contend with observe reads. Commands are not retried automatically:
// resending a non-idempotent toggle could double-apply, so the caller
// decides what a timeout means.
package transport
