package sched

import (
	"testing"
	"time"

	"github.com/pascaldekloe/verse/command"
)

// TestPriorityFairness exercises spec.md §8 property #5: with a high and
// a low priority bucket both non-empty, high-priority commands appear
// before any low-priority one. The proportional share within a pass is
// not checked here.
func TestPriorityFairness(t *testing.T) {
	q := command.NewQueue()
	for i := 0; i < 4; i++ {
		q.Push(&command.Command{ID: 40, Priority: 200, Payload: []byte{byte(i)}})
	}
	for i := 0; i < 4; i++ {
		q.Push(&command.Command{ID: 40, Priority: 64, Payload: []byte{byte(i)}})
	}

	s := New(q, DefaultPacing())
	batch := s.Plan(1024, false)

	if len(batch.Handles) == 0 {
		t.Fatalf("Plan produced no handles")
	}
	// every popped handle from the high bucket must appear before any
	// from the low bucket, since pass 1 (>=DEFAULT) runs to completion
	// before pass 2 begins.
	seenLow := false
	for _, h := range batch.Handles {
		if h.Priority == 64 {
			seenLow = true
		} else if h.Priority == 200 && seenLow {
			t.Fatalf("a high-priority handle appeared after a low-priority one: %+v", batch.Handles)
		}
	}
}

// TestWeightMonotonic checks weight(DEFAULT) is 1 and weight() grows with
// priority on both sides of DEFAULT, the property the fairness split
// leans on.
func TestWeightMonotonic(t *testing.T) {
	if w := weight(command.DefaultPriority); w != 1 {
		t.Errorf("weight(DEFAULT) = %v, want 1", w)
	}
	if weight(200) <= weight(150) {
		t.Errorf("weight should increase with priority above DEFAULT")
	}
	if weight(50) >= weight(100) {
		t.Errorf("weight should increase toward DEFAULT from below")
	}
}

// TestKeepAliveCadence exercises spec.md §8 property #10: an empty queue
// yields at most one keep-alive batch per ResendTimeout, and at least
// one per 2×ResendTimeout.
func TestKeepAliveCadence(t *testing.T) {
	q := command.NewQueue()
	p := Pacing{ResendTimeout: 20 * time.Millisecond, FrameTick: 5 * time.Millisecond}
	s := New(q, p)

	first := s.Plan(1024, false)
	if !first.KeepAlive {
		t.Fatalf("first Plan on an empty queue should keep-alive")
	}

	immediate := s.Plan(1024, false)
	if immediate.KeepAlive {
		t.Errorf("a second Plan within ResendTimeout should not keep-alive again")
	}

	time.Sleep(2 * p.ResendTimeout)
	later := s.Plan(1024, false)
	if !later.KeepAlive {
		t.Errorf("a Plan after ResendTimeout elapsed should keep-alive")
	}
}

func TestPackBucketStopsWhenNextCommandTooLarge(t *testing.T) {
	q := command.NewQueue()
	q.Push(&command.Command{ID: 40, Payload: make([]byte, 10)})
	q.Push(&command.Command{ID: 40, Payload: make([]byte, 10)})

	s := New(q, DefaultPacing())
	batch := s.Plan(15, false) // fits exactly one 15-byte command, not two

	if len(batch.Handles) != 1 {
		t.Fatalf("expected exactly 1 command packed, got %d", len(batch.Handles))
	}
	if left := q.Buckets(); len(left) != 1 || left[0].Len() != 1 {
		t.Errorf("expected 1 command left pending in the bucket, got %+v", left)
	}
}
