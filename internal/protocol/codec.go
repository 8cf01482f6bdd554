package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Framing selects whether frames carry a leading type tag.
type Framing uint8

const (
	FramingTagged Framing = iota
	FramingLegacy
)

func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tagged":
		return FramingTagged, nil
	case "legacy":
		return FramingLegacy, nil
	default:
		return FramingTagged, fmt.Errorf("%w: %q", ErrFramingValue, s)
	}
}

func (f Framing) String() string {
	if f == FramingLegacy {
		return "legacy"
	}
	return "tagged"
}

// Codec encodes and decodes frames for one framing mode.
type Codec struct {
	Framing Framing
}

func (c Codec) frame(t Type, payloadLen int) []byte {
	if c.Framing == FramingLegacy {
		return make([]byte, payloadLen)
	}
	out := make([]byte, TagSize+payloadLen)
	out[0] = byte(t)
	return out
}

func (c Codec) payload(frame []byte) []byte {
	if c.Framing == FramingLegacy {
		return frame
	}
	return frame[TagSize:]
}

// EncodeBatch encodes a full batch buffer as one frame.
func (c Codec) EncodeBatch(readings []DataReading) ([]byte, error) {
	if len(readings) != BatchCapacity {
		return nil, fmt.Errorf("%w: %d readings", ErrBatchSize, len(readings))
	}
	out := c.frame(TypeDataBatch, DataBatchSize)
	p := c.payload(out)
	for i, r := range readings {
		putReading(p[i*DataReadingSize:(i+1)*DataReadingSize], r)
	}
	return out, nil
}

func (c Codec) EncodePresence(n PresenceNotification) []byte {
	out := c.frame(TypePresence, PresenceSize)
	p := c.payload(out)
	if n.Present {
		p[0] = 1
	}
	binary.LittleEndian.PutUint64(p[1:9], uint64(n.Timestamp))
	return out
}

func (c Codec) EncodeTimeRequest() []byte {
	out := c.frame(TypeTimeRequest, TimeRequestSize)
	copy(c.payload(out), timeRequestMarker[:])
	return out
}

func (c Codec) EncodeTimeResponse(epoch int64) []byte {
	out := c.frame(TypeTimeResponse, TimeResponseSize)
	binary.LittleEndian.PutUint64(c.payload(out), uint64(epoch))
	return out
}

func (c Codec) EncodeStatus(s NodeStatus) []byte {
	out := c.frame(TypeNodeStatus, NodeStatusSize)
	p := c.payload(out)
	binary.LittleEndian.PutUint32(p[0:4], uint32(s.RebootCount))
	binary.LittleEndian.PutUint32(p[4:8], s.UptimeSeconds)
	return out
}

// TypeOf identifies the frame type. Tagged frames are identified by their tag;
// legacy frames by their length alone, which cannot tell NodeStatus from
// TimeResponse (both 8 bytes): hint resolves that case.
func (c Codec) TypeOf(frame []byte, hint Type) Type {
	if len(frame) == 0 {
		return TypeUnknown
	}
	if c.Framing == FramingTagged {
		t := Type(frame[0])
		if t.payloadSize() != len(frame)-TagSize {
			return TypeUnknown
		}
		return t
	}
	switch len(frame) {
	case DataBatchSize:
		return TypeDataBatch
	case PresenceSize:
		return TypePresence
	case TimeRequestSize:
		return TypeTimeRequest
	case TimeResponseSize:
		if hint == TypeNodeStatus {
			return TypeNodeStatus
		}
		return TypeTimeResponse
	default:
		return TypeUnknown
	}
}

// Decode parses frame into a Message. hint is only consulted for legacy frames (see TypeOf).
func (c Codec) Decode(frame []byte, hint Type) (Message, error) {
	if len(frame) == 0 {
		return Message{}, ErrEmptyFrame
	}
	t := c.TypeOf(frame, hint)
	if t == TypeUnknown {
		if c.Framing == FramingTagged && Type(frame[0]).payloadSize() < 0 {
			return Message{}, fmt.Errorf("%w: 0x%02X", ErrUnknownTag, frame[0])
		}
		return Message{}, fmt.Errorf("%w: %d bytes", ErrFrameSize, len(frame))
	}
	p := c.payload(frame)
	msg := Message{Type: t}
	switch t {
	case TypeDataBatch:
		msg.Batch = make([]DataReading, BatchCapacity)
		for i := range msg.Batch {
			msg.Batch[i] = readReading(p[i*DataReadingSize : (i+1)*DataReadingSize])
		}
	case TypePresence:
		msg.Presence = &PresenceNotification{
			Present:   p[0] != 0,
			Timestamp: int64(binary.LittleEndian.Uint64(p[1:9])),
		}
	case TypeTimeRequest:
		if !bytes.Equal(p, timeRequestMarker[:]) {
			return Message{}, ErrBadTimeTag
		}
	case TypeTimeResponse:
		msg.Epoch = int64(binary.LittleEndian.Uint64(p))
	case TypeNodeStatus:
		msg.Status = &NodeStatus{
			RebootCount:   int32(binary.LittleEndian.Uint32(p[0:4])),
			UptimeSeconds: binary.LittleEndian.Uint32(p[4:8]),
		}
	}
	return msg, nil
}

func putReading(b []byte, r DataReading) {
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(r.Temperature))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(r.Humidity))
	binary.LittleEndian.PutUint32(b[8:12], uint32(r.Percentage))
	binary.LittleEndian.PutUint64(b[12:20], uint64(r.Timestamp))
}

func readReading(b []byte) DataReading {
	return DataReading{
		Temperature: math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		Humidity:    math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		Percentage:  int32(binary.LittleEndian.Uint32(b[8:12])),
		Timestamp:   int64(binary.LittleEndian.Uint64(b[12:20])),
	}
}
