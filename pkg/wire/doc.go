// Package wire defines the token wire format spoken by Philips air
// purifiers and humidifiers on the local network.
//
// A message is a sequence of entries, each introduced by the entry
// delimiter '|' and terminated as a whole by the end marker '!':
//
//	|.typ=ntf|.mid=17|.sid=9f42c0d1|pwr=1|mode=M|om=2!
//
// # Envelope and payload keys
//
// Keys starting with '.' are structural envelope keys:
//   - .typ: message type (req, rsp, ntf, ack)
//   - .op:  request operation (sync, status, obs, ctl)
//   - .mid: message ID, decimal uint32
//   - .sid: device session token
//   - .sta: result status (ok, err)
//
// Unknown envelope keys fail decoding. Plain keys are device status
// tokens and pass through verbatim, including keys this package has
// never seen, so firmware additions decode without code changes.
//
// # Malformed input
//
// A malformed entry fails the whole message: decoding never returns a
// partial status mapping.
package wire
