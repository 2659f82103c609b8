package wire

import (
	"errors"
	"fmt"
)

// MessageType identifies the kind of a wire message.
type MessageType uint8

const (
	// TypeUnknown is the zero value; messages never carry it.
	TypeUnknown MessageType = iota

	// TypeRequest is a client-to-device request.
	TypeRequest

	// TypeResponse answers a request with an optional payload.
	TypeResponse

	// TypeNotify is an unsolicited device push (observe update).
	TypeNotify

	// TypeAck acknowledges a control mutation.
	TypeAck
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "REQUEST"
	case TypeResponse:
		return "RESPONSE"
	case TypeNotify:
		return "NOTIFY"
	case TypeAck:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}

// token returns the wire token for the type.
func (t MessageType) token() string {
	switch t {
	case TypeRequest:
		return "req"
	case TypeResponse:
		return "rsp"
	case TypeNotify:
		return "ntf"
	case TypeAck:
		return "ack"
	default:
		return ""
	}
}

// parseMessageType maps a wire token to a MessageType.
func parseMessageType(s string) (MessageType, bool) {
	switch s {
	case "req":
		return TypeRequest, true
	case "rsp":
		return TypeResponse, true
	case "ntf":
		return TypeNotify, true
	case "ack":
		return TypeAck, true
	default:
		return TypeUnknown, false
	}
}

// Operation identifies what a request asks the device to do.
type Operation uint8

const (
	// OpNone is the zero value; only requests carry an operation.
	OpNone Operation = iota

	// OpSync is the session handshake. The device answers with its
	// session token.
	OpSync

	// OpStatus requests a one-shot status snapshot.
	OpStatus

	// OpObserve subscribes the sender to status push updates.
	OpObserve

	// OpControl applies a single control mutation.
	OpControl
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpSync:
		return "SYNC"
	case OpStatus:
		return "STATUS"
	case OpObserve:
		return "OBSERVE"
	case OpControl:
		return "CONTROL"
	default:
		return "NONE"
	}
}

// token returns the wire token for the operation.
func (o Operation) token() string {
	switch o {
	case OpSync:
		return "sync"
	case OpStatus:
		return "status"
	case OpObserve:
		return "obs"
	case OpControl:
		return "ctl"
	default:
		return ""
	}
}

// parseOperation maps a wire token to an Operation.
func parseOperation(s string) (Operation, bool) {
	switch s {
	case "sync":
		return OpSync, true
	case "status":
		return OpStatus, true
	case "obs":
		return OpObserve, true
	case "ctl":
		return OpControl, true
	default:
		return OpNone, false
	}
}

// Result is the outcome carried by responses and acks.
type Result uint8

const (
	// ResultNone is the zero value; requests and notifications carry it.
	ResultNone Result = iota

	// ResultOK indicates success.
	ResultOK

	// ResultError indicates the device rejected the request.
	ResultError
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultError:
		return "ERROR"
	default:
		return "NONE"
	}
}

// token returns the wire token for the result.
func (r Result) token() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "err"
	default:
		return ""
	}
}

// parseResult maps a wire token to a Result.
func parseResult(s string) (Result, bool) {
	switch s {
	case "ok":
		return ResultOK, true
	case "err":
		return ResultError, true
	default:
		return ResultNone, false
	}
}

// Message is a decoded wire message: the structural envelope plus the
// plain key/value payload.
type Message struct {
	// Type is the message type (.typ). Required.
	Type MessageType

	// Op is the request operation (.op). Requests only.
	Op Operation

	// ID is the message ID (.mid). Correlates request/response pairs
	// and sequences notifications.
	ID uint32

	// Session is the device session token (.sid). Present on sync
	// responses and notifications.
	Session string

	// Result is the outcome (.sta). Responses and acks only.
	Result Result

	// Fields is the plain key/value payload. May be nil.
	Fields Status
}

// Validate checks that the message envelope is internally consistent.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeRequest:
		if m.Op == OpNone {
			return errors.New("request without operation")
		}
	case TypeResponse, TypeNotify, TypeAck:
		if m.Op != OpNone {
			return fmt.Errorf("%s message with operation %s", m.Type, m.Op)
		}
	default:
		return errors.New("message without type")
	}
	return nil
}
