// Package negotiate implements the symmetric feature-negotiation rules
// from spec.md §4.8: CHANGE_L/CHANGE_R propose, CONFIRM_L/CONFIRM_R
// confirm, independently for the local->remote ("L") and remote->local
// ("R") directions. The same Set is driven both from the stream
// handshake (package handshake) and inline on the datagram channel
// (package dgram), matching spec.md's "symmetric... used both on the
// stream handshake and inline on the datagram channel."
package negotiate

import (
	"github.com/pascaldekloe/verse/syscmd"
	"github.com/pascaldekloe/verse/wire"
)

// Method enumerates the flow-control and congestion-control methods
// spec.md §4.6 names.
type Method uint8

const (
	MethodReserved Method = iota // never proposed
	MethodNone
	MethodTCPLike
)

// Negotiator is the per-state callback slot from spec.md §4.6 ("Per-state
// callback slots for CHANGE_L/R and CONFIRM_L/R validate or commit each
// feature... A callback returning 'reject' fails the whole packet's
// negotiation and the sender will retry.").
type Negotiator interface {
	ChangeL(feature wire.FeatureID, c syscmd.FeatureCmd) (accept bool)
	ChangeR(feature wire.FeatureID, c syscmd.FeatureCmd) (accept bool)
	ConfirmL(feature wire.FeatureID, c syscmd.FeatureCmd) (accept bool)
	ConfirmR(feature wire.FeatureID, c syscmd.FeatureCmd) (accept bool)
}

type stringFeature struct {
	value     string
	confirmed bool
}

type u8Feature struct {
	value     uint8
	confirmed bool
}

// Set holds the negotiated state for every feature in spec.md §4.1's
// table and implements Negotiator with the rules from §4.8. It is safe
// for the caller's single connection-goroutine use; Set is not
// synchronized internally because exactly one goroutine drives a given
// connection's negotiation. Package dgram calls into it without holding
// the connection mutex.
type Set struct {
	Cookie      stringFeature // anti-spoof secret; CHANGE_L proposes, peer must CONFIRM_L the same value
	FlowControl u8Feature
	Congestion  u8Feature
	RWinScale   u8Feature
	FPS         struct {
		host, peer  float32
		confirmed   bool
		needConfirm bool // set when a CHANGE_L(FPS) arrived and awaits one CONFIRM_L
	}
	CmdCompressOut u8Feature // host->peer direction
	CmdCompressIn  u8Feature // peer->host direction
	HostURL        stringFeature
	DED            stringFeature
	ClientName     stringFeature
	ClientVersion  stringFeature
}

// NewSet returns a Set with every feature unconfirmed.
func NewSet() *Set { return &Set{} }

// Seed installs values already settled elsewhere — the stream
// handshake's cookie/DED exchange (spec.md §4.7 step 3) — as this Set's
// starting point, so a fresh datagram connection's inline negotiation
// gates on the same anti-spoof secret instead of an empty one. fc and cc
// are the flow-control/congestion-control methods to offer; values are
// left unconfirmed until the peer's CONFIRM round-trip lands.
func (s *Set) Seed(cookie, ded string, fc, cc Method) {
	s.Cookie.value = cookie
	s.DED.value = ded
	s.FlowControl.value = uint8(fc)
	s.Congestion.value = uint8(cc)
}

// ChangeL handles an incoming CHANGE_L(feature, values...): "I propose
// these values for use on the local->remote direction" as seen by the
// peer that sent it — from our side, these are the peer's proposals for
// peer->host if we are the one being proposed to, so Set always tracks
// feature state from "my local perspective" and the caller is
// responsible for wiring L/R to host/peer consistently at the call site.
func (s *Set) ChangeL(feature wire.FeatureID, c syscmd.FeatureCmd) bool {
	switch feature {
	case wire.FeatureCookie:
		if len(c.StrValues) == 0 {
			return false
		}
		s.Cookie.value = c.StrValues[0]
		s.Cookie.confirmed = false
		return true

	case wire.FeatureFlowControl:
		return s.pickMethod(&s.FlowControl, c.U8Values)

	case wire.FeatureCongestion:
		return s.pickMethod(&s.Congestion, c.U8Values)

	case wire.FeatureRWinScale:
		if len(c.U8Values) != 1 {
			return false
		}
		s.RWinScale.value = c.U8Values[0]
		return true

	case wire.FeatureFPS:
		if len(c.F32Values) != 1 {
			return false
		}
		s.FPS.peer = c.F32Values[0]
		s.FPS.needConfirm = true
		return true

	case wire.FeatureCmdCompress:
		return s.pickMethod(&s.CmdCompressIn, c.U8Values)

	case wire.FeatureHostURL:
		return s.firstWins(&s.HostURL, c.StrValues)
	case wire.FeatureDED:
		return s.firstWins(&s.DED, c.StrValues)
	case wire.FeatureClientName:
		return s.firstWins(&s.ClientName, c.StrValues)
	case wire.FeatureClientVersion:
		return s.firstWins(&s.ClientVersion, c.StrValues)

	default:
		return true // unknown feature id: skip with a warning, don't fail negotiation
	}
}

// ChangeR mirrors ChangeL for the remote->local direction. Only
// compression is direction-specific (CmdCompressOut); every other
// feature, flow and congestion control included, is a shared scalar, so
// ChangeR delegates to ChangeL's storage.
func (s *Set) ChangeR(feature wire.FeatureID, c syscmd.FeatureCmd) bool {
	if feature == wire.FeatureCmdCompress {
		return s.pickMethod(&s.CmdCompressOut, c.U8Values)
	}
	return s.ChangeL(feature, c)
}

// ConfirmL handles an incoming CONFIRM_L(feature, value): "I confirm
// exactly this value for the local->remote direction." Cookie gating
// lives here: a confirm that doesn't echo the proposed value fails, and
// per spec.md §4.8 the packet carrying it must be dropped entirely by
// the caller (anti-spoof).
func (s *Set) ConfirmL(feature wire.FeatureID, c syscmd.FeatureCmd) bool {
	switch feature {
	case wire.FeatureCookie:
		if len(c.StrValues) != 1 || c.StrValues[0] != s.Cookie.value {
			return false
		}
		s.Cookie.confirmed = true
		return true

	case wire.FeatureFlowControl:
		return s.confirmMethod(&s.FlowControl, c.U8Values)
	case wire.FeatureCongestion:
		return s.confirmMethod(&s.Congestion, c.U8Values)

	case wire.FeatureRWinScale:
		if len(c.U8Values) != 1 || c.U8Values[0] != s.RWinScale.value {
			s.RWinScale.value = 0 // reject: treat as 0 per spec.md §4.8
			return false
		}
		s.RWinScale.confirmed = true
		return true

	case wire.FeatureFPS:
		if len(c.F32Values) != 1 {
			return false
		}
		s.FPS.peer = c.F32Values[0]
		s.FPS.confirmed = true
		s.FPS.needConfirm = false
		return true

	case wire.FeatureCmdCompress:
		return s.confirmMethod(&s.CmdCompressIn, c.U8Values)

	case wire.FeatureHostURL:
		return s.confirmString(&s.HostURL, c.StrValues)
	case wire.FeatureDED:
		return s.confirmString(&s.DED, c.StrValues)
	case wire.FeatureClientName:
		return s.confirmString(&s.ClientName, c.StrValues)
	case wire.FeatureClientVersion:
		return s.confirmString(&s.ClientVersion, c.StrValues)

	default:
		return true
	}
}

// ConfirmR mirrors ConfirmL for the remote->local direction.
func (s *Set) ConfirmR(feature wire.FeatureID, c syscmd.FeatureCmd) bool {
	if feature == wire.FeatureCmdCompress {
		return s.confirmMethod(&s.CmdCompressOut, c.U8Values)
	}
	return s.ConfirmL(feature, c)
}

func (s *Set) pickMethod(f *u8Feature, proposed []uint8) bool {
	for _, m := range proposed {
		if Method(m) == MethodNone || Method(m) == MethodTCPLike {
			f.value = m
			return true
		}
	}
	return false
}

func (s *Set) confirmMethod(f *u8Feature, values []uint8) bool {
	if len(values) != 1 || values[0] != f.value {
		return false
	}
	f.confirmed = true
	return true
}

func (s *Set) firstWins(f *stringFeature, values []string) bool {
	if f.value == "" && len(values) > 0 {
		f.value = values[0]
	}
	return true
}

func (s *Set) confirmString(f *stringFeature, values []string) bool {
	if len(values) != 1 {
		return false
	}
	f.value = values[0]
	f.confirmed = true
	return true
}

// NeedsFPSAnnounce reports whether a CHANGE_L(FPS) must be repeated on
// the next outgoing packet because the host and peer fps have not yet
// converged (spec.md §4.8: "Until confirmed, CHANGE_L(FPS) is repeated
// on every outgoing packet whose host fps != peer fps.").
func (s *Set) NeedsFPSAnnounce(hostFPS float32) bool {
	return !s.FPS.confirmed && hostFPS != s.FPS.peer
}

// NeedsFPSConfirm reports and clears the "must reply with one
// CONFIRM_L(FPS)" flag set by an incoming CHANGE_L(FPS).
func (s *Set) NeedsFPSConfirm() bool {
	if s.FPS.needConfirm {
		s.FPS.needConfirm = false
		return true
	}
	return false
}

// Value returns the negotiated method/scalar octet, or 0 before any
// CHANGE has landed.
func (f u8Feature) Value() uint8 { return f.value }

// Confirmed reports whether this scalar feature has completed its
// CONFIRM round-trip.
func (f u8Feature) Confirmed() bool { return f.confirmed }

// Value returns the negotiated string, or "" before any CHANGE has
// landed.
func (f stringFeature) Value() string { return f.value }

// Confirmed reports whether this string feature has completed its
// CONFIRM round-trip.
func (f stringFeature) Confirmed() bool { return f.confirmed }
