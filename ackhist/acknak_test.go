package ackhist

import (
	"math"
	"testing"
	"time"
)

// TestAckNakCoalescing exercises spec.md §8 property #7: receiving
// {1,2,4} must encode ACK(2), NAK(3), ACK(4).
func TestAckNakCoalescing(t *testing.T) {
	v := NewAckNakVector()
	for _, id := range []uint32{1, 2, 4} {
		v.Receive(id)
	}

	runs := v.Runs()
	want := []Run{
		{Kind: RunAck, Low: 1, High: 2},
		{Kind: RunNak, Low: 3, High: 3},
		{Kind: RunAck, Low: 4, High: 4},
	}
	if len(runs) != len(want) {
		t.Fatalf("Runs() = %+v, want %+v", runs, want)
	}
	for i := range want {
		if runs[i] != want[i] {
			t.Errorf("run %d = %+v, want %+v", i, runs[i], want[i])
		}
	}
}

func TestAckNakUnorderedDropped(t *testing.T) {
	v := NewAckNakVector()
	v.Receive(1)
	v.Receive(2)
	if v.Receive(1) {
		t.Errorf("receiving an already-seen payload id should be dropped")
	}
	if got := v.LastReceived(); got != 2 {
		t.Errorf("LastReceived() = %d, want 2", got)
	}
}

func TestAckNakDiscardThrough(t *testing.T) {
	v := NewAckNakVector()
	v.Receive(1)
	v.Receive(2)
	v.Receive(4) // NAK(3), ACK(4)

	v.DiscardThrough(2)
	runs := v.Runs()
	if len(runs) != 2 || runs[0].Kind != RunNak || runs[0].Low != 3 {
		t.Errorf("after DiscardThrough(2): %+v", runs)
	}
}

// TestSRTTRecurrence exercises spec.md §8 property #11.
func TestSRTTRecurrence(t *testing.T) {
	h := NewSentHistory()

	r1, r2, r3 := 100*time.Millisecond, 150*time.Millisecond, 80*time.Millisecond

	h.Record(1, nil)
	h.records[1].Sent = time.Now().Add(-r1)
	h.Ack(1)

	h.Record(2, nil)
	h.records[2].Sent = time.Now().Add(-r2)
	h.Ack(2)

	h.Record(3, nil)
	h.records[3].Sent = time.Now().Add(-r3)
	h.Ack(3)

	want := 0.9*(0.9*float64(r1)+0.1*float64(r2)) + 0.1*float64(r3)
	got := float64(h.SRTT())

	// allow generous epsilon: Since() adds measurement jitter
	if math.Abs(got-want) > float64(20*time.Millisecond) {
		t.Errorf("SRTT = %v, want close to %v", h.SRTT(), time.Duration(want))
	}
}
