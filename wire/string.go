package wire

// MaxShortString is the largest short string payload, bound by the one
// octet length prefix.
const MaxShortString = 255

// PutString appends s as a short string: a u8 length followed by the
// octets of s. The terminating NUL some callers keep in memory is never
// written to the wire. Strings longer than MaxShortString are truncated.
func PutString(b []byte, s string) []byte {
	if len(s) > MaxShortString {
		s = s[:MaxShortString]
	}
	b = PutU8(b, uint8(len(s)))
	return append(b, s...)
}

// String decodes a short string from the head of b.
func String(b []byte) (s string, rest []byte, ok bool) {
	n, rest, ok := U8(b)
	if !ok {
		return "", b, false
	}
	if len(rest) < int(n) {
		return "", b, false
	}
	return string(rest[:n]), rest[n:], true
}
