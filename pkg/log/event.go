package log

import (
	"time"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// Event is one protocol log record. CBOR encoding uses integer keys
// for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the local session the event belongs to.
	SessionID string `cbor:"2,keyasint"`

	// Direction of message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the device address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the device identifier, once known.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload; exactly one is set.
	Frame       *FrameEvent       `cbor:"8,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"9,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates a message sent to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which driver layer captured the event.
type Layer uint8

const (
	// LayerTransport is the datagram layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message codec layer (decoded tokens).
	LayerWire Layer = 1
	// LayerSession is the session facade layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one raw datagram.
type FrameEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw datagram (may be truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates whether Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded wire message. Payload values are
// deliberately omitted; only the keys are recorded.
type MessageEvent struct {
	// Type is the message type.
	Type wire.MessageType `cbor:"1,keyasint"`

	// ID is the message ID.
	ID uint32 `cbor:"2,keyasint"`

	// Op is the request operation, if any.
	Op wire.Operation `cbor:"3,keyasint,omitempty"`

	// Result is the response/ack outcome, if any.
	Result wire.Result `cbor:"4,keyasint,omitempty"`

	// Keys lists the payload keys carried by the message.
	Keys []string `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures session and stream lifecycle transitions.
type StateChangeEvent struct {
	// Entity is what changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change, if known.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates the transport session.
	StateEntityConnection StateEntity = 0
	// StateEntityObserve indicates the observe stream.
	StateEntityObserve StateEntity = 1
	// StateEntityFacade indicates the device session facade.
	StateEntityFacade StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityObserve:
		return "OBSERVE"
	case StateEntityFacade:
		return "FACADE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
