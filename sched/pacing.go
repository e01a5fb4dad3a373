// Package sched implements the priority scheduler from spec.md §4.3: a
// two-pass weighted-fair walk over a command.Queue's priority buckets
// that packs an MTU/window-bounded outgoing datagram, plus the
// keep-alive cadence that fires when the queue has gone quiet.
package sched

import "time"

// Pacing is the single timeout source spec.md §9's Design Note asks for
// ("All wait loops should take timeouts from a single pacing
// configuration so the priority scheduler, keep-alive, and state
// timeouts advance in lockstep").
type Pacing struct {
	ResendTimeout time.Duration
	FrameTick     time.Duration
}

// DefaultPacing returns pacing values in line with the RESEND_TIMEOUT /
// frame-tick cadence spec.md §8 property #10 exercises.
func DefaultPacing() Pacing {
	return Pacing{
		ResendTimeout: 500 * time.Millisecond,
		FrameTick:     50 * time.Millisecond,
	}
}
