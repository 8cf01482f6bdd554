package utils

const hexDigits = "0123456789ABCDEF"

// BytesToHex renders b as uppercase hex without separators, for diagnostics.
func BytesToHex(b []byte) string {
	out := make([]byte, 0, len(b)*2)
	for _, x := range b {
		out = append(out, hexDigits[x>>4], hexDigits[x&0x0F])
	}
	return string(out)
}

// PrintableASCII replaces every byte outside the printable ASCII range with '.'.
func PrintableASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, x := range b {
		if x < 0x20 || x > 0x7E {
			out[i] = '.'
			continue
		}
		out[i] = x
	}
	return string(out)
}
