package utils

import "testing"

func TestBytesToHex(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x00}, "00"},
		{[]byte{0x01, 0xD0, 0xFF}, "01D0FF"},
	}
	for _, tt := range tests {
		if got := BytesToHex(tt.in); got != tt.want {
			t.Errorf("BytesToHex(% X) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintableASCII(t *testing.T) {
	if got := PrintableASCII([]byte("TIME\x00")); got != "TIME." {
		t.Errorf("PrintableASCII = %q, want %q", got, "TIME.")
	}
}
