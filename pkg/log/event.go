package log

import (
	"time"
)

// MaxCapture is the number of datagram bytes kept in a trace event.
const MaxCapture = 256

// Event is one protocol trace record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SocketID identifies the socket (UUID); empty for client-wide events.
	SocketID string `cbor:"2,keyasint,omitempty"`

	// Direction of datagram flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the client endpoint name.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// SSID of the server account the socket belongs to.
	SSID uint16 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these is set).
	Datagram    *DatagramEvent    `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates datagram flow.
type Direction uint8

const (
	// DirectionIn is a received datagram.
	DirectionIn Direction = 0
	// DirectionOut is a sent datagram.
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

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the UDP socket layer.
	LayerTransport Layer = 0
	// LayerLoop is the event loop.
	LayerLoop Layer = 1
	// LayerBootstrap is data model assembly and teardown.
	LayerBootstrap Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerLoop:
		return "LOOP"
	case LayerBootstrap:
		return "BOOTSTRAP"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	// CategoryDatagram is a datagram received or sent.
	CategoryDatagram Category = 0
	// CategoryState is a lifecycle change.
	CategoryState Category = 1
	// CategoryError is a failure.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryDatagram:
		return "DATAGRAM"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent captures datagram bytes.
type DatagramEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data holds at most MaxCapture leading bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated is set when Data is shorter than Size.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// NewDatagramEvent copies up to MaxCapture bytes of data.
func NewDatagramEvent(data []byte) *DatagramEvent {
	n := min(len(data), MaxCapture)
	return &DatagramEvent{
		Size:      len(data),
		Data:      append([]byte(nil), data[:n]...),
		Truncated: n < len(data),
	}
}

// StateChangeEvent captures a lifecycle change.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntitySocket is a server socket.
	StateEntitySocket StateEntity = 0
	// StateEntityClient is the client context.
	StateEntityClient StateEntity = 1
	// StateEntityObject is a data model object.
	StateEntityObject StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySocket:
		return "SOCKET"
	case StateEntityClient:
		return "CLIENT"
	case StateEntityObject:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a failure.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"2,keyasint,omitempty"`
}
