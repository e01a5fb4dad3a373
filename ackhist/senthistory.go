package ackhist

import (
	"sync"
	"time"

	"github.com/pascaldekloe/verse/command"
)

// BackRef is one command's back-reference from a sent-packet record into
// the outgoing Queue, per spec.md §3 ("Sent-packet record").
type BackRef struct {
	Handle command.Handle
	Cmd    *command.Command
}

// SentRecord is the bookkeeping for one payload packet still awaiting
// ACK/NAK.
type SentRecord struct {
	PayloadID uint32
	Sent      time.Time
	Refs      []BackRef
}

// SentHistory is the outgoing half of §4.5: a record per in-flight
// payload packet, each holding back-references to the commands it
// carried.
type SentHistory struct {
	mu      sync.Mutex
	records map[uint32]*SentRecord
	srtt    time.Duration
}

// NewSentHistory returns an empty history.
func NewSentHistory() *SentHistory {
	return &SentHistory{records: make(map[uint32]*SentRecord)}
}

// Record registers a newly sent PAY packet.
func (h *SentHistory) Record(payloadID uint32, refs []BackRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[payloadID] = &SentRecord{PayloadID: payloadID, Sent: time.Now(), Refs: refs}
}

// Ack drops the sent-packet record for k, updates SRTT from its send
// timestamp, and returns the command handles to destroy in the outgoing
// Queue (spec.md §4.5: "ACK k: drop the sent-packet record for k...").
func (h *SentHistory) Ack(k uint32) (refs []BackRef, found bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, found := h.records[k]
	if !found {
		return nil, false
	}
	delete(h.records, k)

	rtt := time.Since(rec.Sent)
	h.updateSRTT(rtt)

	return rec.Refs, true
}

// updateSRTT applies the recurrence from spec.md §4.5 and §8 property
// #11: srtt := srtt==0 ? rtt : 0.9*srtt + 0.1*rtt.
func (h *SentHistory) updateSRTT(rtt time.Duration) {
	if h.srtt == 0 {
		h.srtt = rtt
		return
	}
	h.srtt = time.Duration(0.9*float64(h.srtt) + 0.1*float64(rtt))
}

// SRTT returns the current smoothed round-trip time.
func (h *SentHistory) SRTT() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.srtt
}

// Nak drops the sent-packet record for k and returns its back-references
// so the caller can offer each live command for retransmission via
// Queue.Nak (spec.md §4.5: "NAK k: for each lost payload id, walk the
// back-reference list...").
func (h *SentHistory) Nak(k uint32) (refs []BackRef, found bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, found := h.records[k]
	if !found {
		return nil, false
	}
	delete(h.records, k)
	return rec.Refs, true
}

// Len reports the number of payload packets still awaiting ACK/NAK.
func (h *SentHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
