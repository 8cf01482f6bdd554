// Package protocol defines the frames exchanged between the sensor node and the
// gateway over the radio link.
//
// Tagged frame layout (little-endian, packed):
//
//	Tag (1) | Payload
//
//	DataBatch     10 x { Temperature f32 | Humidity f32 | Percentage i32 | Timestamp i64 }   200 bytes
//	Presence      Present u8 | Timestamp i64                                                  9 bytes
//	TimeRequest   "TIME\x00"                                                                  5 bytes
//	TimeResponse  Epoch i64                                                                   8 bytes
//	NodeStatus    RebootCount i32 | UptimeSeconds u32                                         8 bytes
//
// Legacy framing sends the payload alone, without the tag byte.
package protocol

import "fmt"

const (
	// MaxFrameSize is the largest frame the link carries in one transmission.
	MaxFrameSize = 250

	// BatchCapacity is the number of readings flushed together as one DataBatch frame.
	BatchCapacity = 10

	TagSize = 1

	DataReadingSize  = 4 + 4 + 4 + 8
	DataBatchSize    = BatchCapacity * DataReadingSize
	PresenceSize     = 1 + 8
	TimeRequestSize  = 5
	TimeResponseSize = 8
	NodeStatusSize   = 4 + 4
)

// timeRequestMarker is the fixed request tag, NUL terminator included.
var timeRequestMarker = [TimeRequestSize]byte{'T', 'I', 'M', 'E', 0}

// Type is the first byte of every tagged frame.
type Type byte

const (
	TypeUnknown      Type = 0x00
	TypeDataBatch    Type = 0x01
	TypePresence     Type = 0x02
	TypeTimeRequest  Type = 0x03
	TypeTimeResponse Type = 0x04
	TypeNodeStatus   Type = 0x05
)

func (t Type) String() string {
	switch t {
	case TypeDataBatch:
		return "data"
	case TypePresence:
		return "presence"
	case TypeTimeRequest:
		return "time_request"
	case TypeTimeResponse:
		return "time_response"
	case TypeNodeStatus:
		return "status"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}

// payloadSize returns the fixed payload size for t, or -1 for unknown types.
func (t Type) payloadSize() int {
	switch t {
	case TypeDataBatch:
		return DataBatchSize
	case TypePresence:
		return PresenceSize
	case TypeTimeRequest:
		return TimeRequestSize
	case TypeTimeResponse:
		return TimeResponseSize
	case TypeNodeStatus:
		return NodeStatusSize
	default:
		return -1
	}
}

// DataReading is one combined sample of all three channels.
type DataReading struct {
	Temperature float32
	Humidity    float32
	Percentage  int32
	Timestamp   int64
}

// PresenceNotification reports a presence edge.
type PresenceNotification struct {
	Present   bool
	Timestamp int64
}

// NodeStatus is the periodic heartbeat of the sensor node.
type NodeStatus struct {
	RebootCount   int32
	UptimeSeconds uint32
}

// Message is a decoded frame. Only the field matching Type is set.
type Message struct {
	Type     Type
	Batch    []DataReading
	Presence *PresenceNotification
	Status   *NodeStatus
	Epoch    int64
}
