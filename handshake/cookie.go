package handshake

import "crypto/rand"

// printableCookie returns a cookie of n printable ASCII octets (0x20-0x7e),
// per spec.md §4.7 ("new peer_cookie = 16 printable random octets").
func printableCookie(n int) string {
	const lo, span = 0x20, 0x7f - 0x20

	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		panic("handshake: system randomness unavailable: " + err.Error())
	}

	out := make([]byte, n)
	for i, b := range raw {
		out[i] = lo + b%span
	}
	return string(out)
}
