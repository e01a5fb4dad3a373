// Package handshake implements the reliable-stream handshake state
// machine from spec.md §4.7: user authentication, cookie/DED exchange,
// and the scheme-string-driven selection of the data-plane transport
// that hands off to package dgram for UDP or continues as the data
// plane itself for TCP.
package handshake

import "fmt"

// State is one step of the client or server stream sequence. The two
// sequences share NegotiateCookieDed, NegotiateNewHost, StreamOpen,
// Closing and Closed; every other value belongs to one role only.
type State uint8

const (
	_ State = iota

	// Client sequence.
	UsrAuthNone
	UsrAuthData
	NegotiateCookieDed
	NegotiateNewHost

	// Server sequence.
	Listen
	RespondMethods
	RespondUsrAuth

	StreamOpen
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case UsrAuthNone:
		return "USRAUTH_NONE"
	case UsrAuthData:
		return "USRAUTH_DATA"
	case NegotiateCookieDed:
		return "NEGOTIATE_COOKIE_DED"
	case NegotiateNewHost:
		return "NEGOTIATE_NEWHOST"
	case Listen:
		return "LISTEN"
	case RespondMethods:
		return "RESPOND_METHODS"
	case RespondUsrAuth:
		return "RESPOND_USRAUTH"
	case StreamOpen:
		return "STREAM_OPEN"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Scheme identifies a data-plane transport+security combination from
// the host_url grammar (spec.md §4.7, §4.10).
type Scheme string

const (
	SchemeUDPNone Scheme = "verse-udp-none"
	SchemeUDPDTLS Scheme = "verse-udp-dtls"
	SchemeTCPNone Scheme = "verse-tcp-none" // always rejected by the server
	SchemeTCPTLS  Scheme = "verse-tcp-tls"
	SchemeWSSTLS  Scheme = "verse-wss-tls"
)

// IsUDP reports whether the scheme hands off to a separate datagram
// connection (package dgram) rather than continuing on the stream.
func (s Scheme) IsUDP() bool {
	return s == SchemeUDPNone || s == SchemeUDPDTLS
}
