package sched

import (
	"github.com/pascaldekloe/verse/command"
	"golang.org/x/time/rate"
)

// Batch is the outcome of one Plan call: the packed node-command bytes
// ready to follow the system-command block in an outgoing datagram
// (packet.Datagram.Body), plus the handles a sent-packet record must
// keep for ACK/NAK resolution.
type Batch struct {
	Bytes    []byte
	Handles  []command.Handle
	KeepAlive bool // true when Bytes is empty and this batch exists only to carry a keep-alive PAY
}

// Scheduler is the per-session, per-direction instance of spec.md
// §4.3's priority scheduler.
type Scheduler struct {
	Queue  *command.Queue
	Pacing Pacing

	// keepAlive gates RESEND_TIMEOUT-based keep-alive emission: a
	// limiter with burst 1 refilling at rate.Every(ResendTimeout)
	// grants exactly one Allow() per interval since the last payload
	// or keep-alive, which is the same "has enough time elapsed"
	// check the scheduler needs and x/time already models.
	keepAlive *rate.Limiter
}

// New returns a Scheduler for q.
func New(q *command.Queue, p Pacing) *Scheduler {
	return &Scheduler{Queue: q, Pacing: p, keepAlive: rate.NewLimiter(rate.Every(p.ResendTimeout), 1)}
}

// Plan selects commands for one outgoing datagram body up to budget
// octets (already reduced by the caller for header and system-command
// space — spec.md §4.3: "the scheduler first reserves header and
// system-command space"), applying the two-pass weighted-fair walk.
// compress enables address-share grouping, gated by the peer's
// negotiated CMD_COMPRESS method.
func (s *Scheduler) Plan(budget int, compress bool) Batch {
	all := s.Queue.Buckets()
	var high, low []*command.Bucket
	for _, b := range all {
		if b.Priority >= command.DefaultPriority {
			high = append(high, b)
		} else {
			low = append(low, b)
		}
	}

	var batch Batch
	used := s.packPass(&batch, high, budget, compress)
	if remaining := budget - used; remaining > 0 {
		s.packPass(&batch, low, remaining, compress)
	}

	if len(batch.Bytes) > 0 {
		// real traffic restarts the keep-alive clock: a fresh limiter
		// with its one token spent holds the next keep-alive back for a
		// full ResendTimeout from now
		s.keepAlive = rate.NewLimiter(rate.Every(s.Pacing.ResendTimeout), 1)
		s.keepAlive.Allow()
		return batch
	}

	if s.keepAlive.Allow() {
		return Batch{KeepAlive: true}
	}
	return Batch{}
}

// packPass distributes budget across buckets proportional to weight()
// and packs each bucket's share, appending to batch. It returns the
// total octets consumed across the pass.
func (s *Scheduler) packPass(batch *Batch, buckets []*command.Bucket, budget int, compress bool) int {
	if len(buckets) == 0 || budget <= 0 {
		return 0
	}
	sumW := sumWeight(buckets)

	used := 0
	for _, b := range buckets {
		bucketBudget := share(budget-used, b, sumW)
		if bucketBudget <= 0 {
			continue
		}
		frame, handles, n := s.packBucket(b, bucketBudget, compress)
		batch.Bytes = append(batch.Bytes, frame...)
		batch.Handles = append(batch.Handles, handles...)
		used += n
	}
	return used
}

// packBucket walks b's FIFO front-to-back, combining consecutive
// commands sharing an id and an address prefix into one compressed
// group when compress is true and the bucket's commands allow it,
// stopping the pass as soon as the next command (or group) would exceed
// budget (spec.md §4.3: "When the next command's full size exceeds the
// remaining space, it is pushed back to the head of the bucket and the
// pass ends.").
func (s *Scheduler) packBucket(b *command.Bucket, budget int, compress bool) (frame []byte, handles []command.Handle, used int) {
	for used < budget && b.Len() > 0 {
		group, frameBytes := s.nextGroup(b, budget-used, compress)
		if group == 0 {
			break
		}
		for i := 0; i < group; i++ {
			cmd, h, ok := s.Queue.Pop(b.Priority)
			if !ok {
				break
			}
			_ = cmd
			handles = append(handles, h)
		}
		frame = append(frame, frameBytes...)
		used += len(frameBytes)
	}
	return frame, handles, used
}

// nextGroup looks ahead from the bucket's front without popping and
// returns the count of commands that form the next wire frame (1 for an
// uncompressed single command, >1 for an address-share group) along
// with its packed bytes, or (0, nil) if even the front command does not
// fit in budget.
func (s *Scheduler) nextGroup(b *command.Bucket, budget int, compress bool) (count int, frame []byte) {
	first := b.PeekFront()
	if first == nil {
		return 0, nil
	}

	n := 1
	shareLen := len(first.Address)
	if compress && first.Coalesce {
		for n < b.Len() {
			next := b.Peek(n)
			if next == nil || next.ID != first.ID || !next.Coalesce {
				break
			}
			sp := command.SharedPrefix(first.Address, next.Address)
			if sp == 0 {
				break
			}
			if sp < shareLen {
				shareLen = sp
			}
			n++
		}
	}

	for n > 1 {
		cmds := peekN(b, n)
		f := command.PackGroup(cmds, shareLen)
		if len(f) <= budget {
			return n, f
		}
		n--
	}

	f := command.PackOne(nil, first)
	if len(f) > budget {
		return 0, nil
	}
	return 1, f
}

func peekN(b *command.Bucket, n int) []*command.Command {
	out := make([]*command.Command, n)
	for i := 0; i < n; i++ {
		out[i] = b.Peek(i)
	}
	return out
}
