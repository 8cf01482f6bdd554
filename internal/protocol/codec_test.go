package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func fullBatch() []DataReading {
	out := make([]DataReading, BatchCapacity)
	for i := range out {
		out[i] = DataReading{
			Temperature: 20 + float32(i)*0.5,
			Humidity:    40 + float32(i),
			Percentage:  int32(i * 10),
			Timestamp:   1_700_000_000 + int64(i),
		}
	}
	return out
}

func TestFrameSizes(t *testing.T) {
	tagged := Codec{Framing: FramingTagged}
	legacy := Codec{Framing: FramingLegacy}

	batchTagged, err := tagged.EncodeBatch(fullBatch())
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	batchLegacy, err := legacy.EncodeBatch(fullBatch())
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	tests := []struct {
		name  string
		frame []byte
		want  int
	}{
		{"tagged batch", batchTagged, 1 + 10*20},
		{"legacy batch", batchLegacy, 10 * 20},
		{"tagged presence", tagged.EncodePresence(PresenceNotification{Present: true}), 1 + 9},
		{"legacy presence", legacy.EncodePresence(PresenceNotification{Present: true}), 9},
		{"tagged time request", tagged.EncodeTimeRequest(), 1 + 5},
		{"legacy time request", legacy.EncodeTimeRequest(), 5},
		{"tagged time response", tagged.EncodeTimeResponse(1), 1 + 8},
		{"legacy time response", legacy.EncodeTimeResponse(1), 8},
		{"tagged status", tagged.EncodeStatus(NodeStatus{}), 1 + 8},
		{"legacy status", legacy.EncodeStatus(NodeStatus{}), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.frame) != tt.want {
				t.Errorf("len = %d, want %d", len(tt.frame), tt.want)
			}
			if len(tt.frame) > MaxFrameSize {
				t.Errorf("len = %d exceeds MaxFrameSize %d", len(tt.frame), MaxFrameSize)
			}
		})
	}
}

func TestEncodeBatch_Layout(t *testing.T) {
	frame, err := Codec{}.EncodeBatch(fullBatch())
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if Type(frame[0]) != TypeDataBatch {
		t.Fatalf("tag = %v, want %v", Type(frame[0]), TypeDataBatch)
	}

	// Second reading starts at tag + one reading.
	off := TagSize + DataReadingSize
	if got := math.Float32frombits(binary.LittleEndian.Uint32(frame[off : off+4])); got != 20.5 {
		t.Errorf("temperature = %v, want 20.5", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(frame[off+4 : off+8])); got != 41 {
		t.Errorf("humidity = %v, want 41", got)
	}
	if got := int32(binary.LittleEndian.Uint32(frame[off+8 : off+12])); got != 10 {
		t.Errorf("percentage = %v, want 10", got)
	}
	if got := int64(binary.LittleEndian.Uint64(frame[off+12 : off+20])); got != 1_700_000_001 {
		t.Errorf("timestamp = %v, want 1700000001", got)
	}
}

func TestEncodeBatch_NotFull(t *testing.T) {
	_, err := Codec{}.EncodeBatch(fullBatch()[:9])
	if !errors.Is(err, ErrBatchSize) {
		t.Fatalf("err = %v, want ErrBatchSize", err)
	}
}

func TestTimeRequestMarker(t *testing.T) {
	frame := Codec{Framing: FramingLegacy}.EncodeTimeRequest()
	want := []byte{'T', 'I', 'M', 'E', 0}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, frame[i], want[i])
		}
	}
}

func TestDecode_Tagged(t *testing.T) {
	c := Codec{Framing: FramingTagged}

	t.Run("batch", func(t *testing.T) {
		frame, _ := c.EncodeBatch(fullBatch())
		msg, err := c.Decode(frame, TypeUnknown)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Type != TypeDataBatch || len(msg.Batch) != BatchCapacity {
			t.Fatalf("got type=%v len=%d", msg.Type, len(msg.Batch))
		}
		if msg.Batch[9] != fullBatch()[9] {
			t.Errorf("reading 9 = %+v, want %+v", msg.Batch[9], fullBatch()[9])
		}
	})

	t.Run("presence", func(t *testing.T) {
		msg, err := c.Decode(c.EncodePresence(PresenceNotification{Present: true, Timestamp: 42}), TypeUnknown)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Presence == nil || !msg.Presence.Present || msg.Presence.Timestamp != 42 {
			t.Errorf("presence = %+v", msg.Presence)
		}
	})

	t.Run("status", func(t *testing.T) {
		msg, err := c.Decode(c.EncodeStatus(NodeStatus{RebootCount: 3, UptimeSeconds: 600}), TypeUnknown)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Status == nil || msg.Status.RebootCount != 3 || msg.Status.UptimeSeconds != 600 {
			t.Errorf("status = %+v", msg.Status)
		}
	})

	t.Run("time response", func(t *testing.T) {
		msg, err := c.Decode(c.EncodeTimeResponse(1_717_171_717), TypeUnknown)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Type != TypeTimeResponse || msg.Epoch != 1_717_171_717 {
			t.Errorf("got type=%v epoch=%d", msg.Type, msg.Epoch)
		}
	})

	t.Run("time request", func(t *testing.T) {
		msg, err := c.Decode(c.EncodeTimeRequest(), TypeUnknown)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Type != TypeTimeRequest {
			t.Errorf("type = %v", msg.Type)
		}
	})
}

func TestDecode_Errors(t *testing.T) {
	c := Codec{Framing: FramingTagged}
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrEmptyFrame},
		{"unknown tag", []byte{0x7F, 1, 2}, ErrUnknownTag},
		{"short status", []byte{byte(TypeNodeStatus), 1, 2, 3}, ErrFrameSize},
		{"bad marker", []byte{byte(TypeTimeRequest), 'T', 'I', 'M', 'X', 0}, ErrBadTimeTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.frame, TypeUnknown)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_LegacyEightByteAmbiguity(t *testing.T) {
	c := Codec{Framing: FramingLegacy}
	frame := c.EncodeStatus(NodeStatus{RebootCount: 1, UptimeSeconds: 2})

	msg, err := c.Decode(frame, TypeUnknown)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Type != TypeTimeResponse {
		t.Errorf("without hint type = %v, want %v", msg.Type, TypeTimeResponse)
	}

	msg, err = c.Decode(frame, TypeNodeStatus)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Status == nil || msg.Status.UptimeSeconds != 2 {
		t.Errorf("with hint status = %+v", msg.Status)
	}
}

func TestParseFraming(t *testing.T) {
	tests := []struct {
		in      string
		want    Framing
		wantErr bool
	}{
		{"", FramingTagged, false},
		{"tagged", FramingTagged, false},
		{" Legacy ", FramingLegacy, false},
		{"size", FramingTagged, true},
	}
	for _, tt := range tests {
		got, err := ParseFraming(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFraming(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFraming(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAddr(t *testing.T) {
	a, err := ParseAddr("a0:dd:6c:10:81:40")
	if err != nil {
		t.Fatalf("ParseAddr: %v", err)
	}
	if got := a.String(); got != "A0:DD:6C:10:81:40" {
		t.Errorf("String() = %q", got)
	}
	if _, err := ParseAddr("00:00:5e:00:53:01:02:03"); !errors.Is(err, ErrInvalidAddr) {
		t.Errorf("8-byte address err = %v, want ErrInvalidAddr", err)
	}
	if _, err := ParseAddr("nope"); !errors.Is(err, ErrInvalidAddr) {
		t.Errorf("garbage err = %v, want ErrInvalidAddr", err)
	}
}
