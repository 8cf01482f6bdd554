package relay

import (
	"fmt"
	"strings"
	"time"

	"smartenv/internal/protocol"
	"smartenv/internal/utils"
)

// Format renders a decoded message as one printable ASCII line.
func Format(from protocol.Addr, msg protocol.Message) string {
	var b strings.Builder
	switch msg.Type {
	case protocol.TypeDataBatch:
		fmt.Fprintf(&b, "data from %s: %d readings", from, len(msg.Batch))
		for i, r := range msg.Batch {
			sep := "; "
			if i == 0 {
				sep = " ["
			}
			fmt.Fprintf(&b, "%st=%.2fC h=%.2f%% p=%d%% ts=%s", sep, r.Temperature, r.Humidity, r.Percentage, formatEpoch(r.Timestamp))
		}
		if len(msg.Batch) > 0 {
			b.WriteString("]")
		}
	case protocol.TypePresence:
		fmt.Fprintf(&b, "presence from %s: present=%t ts=%s", from, msg.Presence.Present, formatEpoch(msg.Presence.Timestamp))
	case protocol.TypeNodeStatus:
		fmt.Fprintf(&b, "status from %s: reboots=%d uptime=%s", from, msg.Status.RebootCount, time.Duration(msg.Status.UptimeSeconds)*time.Second)
	default:
		fmt.Fprintf(&b, "%s from %s", msg.Type, from)
	}
	return b.String()
}

// FormatRaw renders a frame that could not be decoded.
func FormatRaw(from protocol.Addr, frame []byte) string {
	return fmt.Sprintf("frame from %s: %d bytes %s", from, len(frame), utils.BytesToHex(frame))
}

func formatEpoch(sec int64) string {
	if sec == 0 {
		return "unset"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
