package protocol

import (
	"fmt"
	"net"
	"strings"
)

// Addr is the 6-byte hardware address of a node on the radio link.
type Addr [6]byte

// Broadcast reaches every node listening on the link.
var Broadcast = Addr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ParseAddr parses a colon or dash separated hardware address such as "A0:DD:6C:10:81:40".
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return Addr{}, fmt.Errorf("%w %q: %v", ErrInvalidAddr, s, err)
	}
	if len(hw) != len(Addr{}) {
		return Addr{}, fmt.Errorf("%w %q: want 6 bytes, got %d", ErrInvalidAddr, s, len(hw))
	}
	var a Addr
	copy(a[:], hw)
	return a, nil
}

func (a Addr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Addr) IsZero() bool {
	return a == Addr{}
}
