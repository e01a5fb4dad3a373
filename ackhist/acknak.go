// Package ackhist implements the outgoing sent-packet history and the
// incoming Ack/Nak coalescing vector from spec.md §3 ("Sent-packet
// record", "Ack/Nak history") and §4.5.
package ackhist

import "sync"

// RunKind is ACK or NAK.
type RunKind uint8

const (
	RunAck RunKind = iota
	RunNak
)

func (k RunKind) String() string {
	if k == RunAck {
		return "ACK"
	}
	return "NAK"
}

// Run is one coalesced entry: a contiguous range of payload ids of the
// same kind, collapsed to its bounds (spec.md §4.5, "coalescing rule").
type Run struct {
	Kind     RunKind
	Low, High uint32
}

// AckNakVector is the receiver-side bookkeeping for what to tell the
// peer about inbound payload reception, per spec.md §3 and §4.5.
type AckNakVector struct {
	mu       sync.Mutex
	runs     []Run
	lastRPay uint32
	started  bool
}

// NewAckNakVector returns an empty vector.
func NewAckNakVector() *AckNakVector {
	return &AckNakVector{}
}

// Receive records the reception of payloadID, returning false if it was
// dropped as unordered (payloadID <= last_r_pay).
func (v *AckNakVector) Receive(payloadID uint32) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.started {
		v.started = true
		v.lastRPay = payloadID - 1 // so the first id is lastRPay+1
	}

	if payloadID <= v.lastRPay {
		return false // unordered, drop
	}

	if payloadID == v.lastRPay+1 {
		v.appendRun(RunAck, payloadID, payloadID)
	} else {
		// gap: NAK the missing range, then ACK the new packet
		v.appendRun(RunNak, v.lastRPay+1, payloadID-1)
		v.appendRun(RunAck, payloadID, payloadID)
	}
	v.lastRPay = payloadID
	return true
}

// appendRun merges into the last run when it is the same kind and
// contiguous, else starts a new one.
func (v *AckNakVector) appendRun(kind RunKind, low, high uint32) {
	if n := len(v.runs); n > 0 {
		last := &v.runs[n-1]
		if last.Kind == kind && last.High+1 == low {
			last.High = high
			return
		}
	}
	v.runs = append(v.runs, Run{Kind: kind, Low: low, High: high})
}

// Runs returns the current coalesced vector, oldest first, for framing
// into ACK/NAK system commands (syscmd.PutAck/PutNak, one per run, each
// carrying the run's High as its wire payload).
func (v *AckNakVector) Runs() []Run {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Run, len(v.runs))
	copy(out, v.runs)
	return out
}

// DiscardThrough drops every run (or partial run) whose ids are all <=
// ankID, per spec.md §4.5 ("entries whose pay_id <= peer-reported
// ank_id are discarded").
func (v *AckNakVector) DiscardThrough(ankID uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := 0
	for i < len(v.runs) && v.runs[i].High <= ankID {
		i++
	}
	v.runs = v.runs[i:]
	if len(v.runs) > 0 && v.runs[0].Low <= ankID {
		v.runs[0].Low = ankID + 1
	}
}

// LastReceived returns the highest payload id accepted so far.
func (v *AckNakVector) LastReceived() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastRPay
}
