package command

import "sync"

// state tracks where a queued command's single owner currently is, per
// spec.md §3's invariant: "a command bucket is either in the outgoing
// queue, or in the sent-packet history, or destroyed; it is never in two
// places."
type state uint8

const (
	statePending state = iota // sitting in a priority Bucket's FIFO
	stateSent                 // packed into a datagram, awaiting ACK/NAK
)

type entry struct {
	cmd        *Command
	generation uint64
	st         state
}

// Handle is a stable reference a sent-packet record keeps instead of a
// raw pointer, per the Design Note in spec.md §9 ("model the queue as an
// arena with stable handles... obsolescence is then a dead-generation
// check at retransmit time").
type Handle struct {
	Address    string
	Generation uint64
	Priority   uint8
}

// Bucket is a FIFO sub-queue of outgoing commands sharing one priority
// byte (spec.md glossary, "Priority bucket").
type Bucket struct {
	Priority uint8
	pending  []*entry
}

// Len reports the number of pending (not yet sent) commands.
func (b *Bucket) Len() int { return len(b.pending) }

// PeekFront returns the oldest pending command without removing it.
func (b *Bucket) PeekFront() *Command {
	if len(b.pending) == 0 {
		return nil
	}
	return b.pending[0].cmd
}

// Peek returns the i-th pending command (0 = oldest) for the scheduler's
// adjacent-run lookahead, or nil if out of range.
func (b *Bucket) Peek(i int) *Command {
	if i < 0 || i >= len(b.pending) {
		return nil
	}
	return b.pending[i].cmd
}

func (b *Bucket) pushBack(e *entry) { b.pending = append(b.pending, e) }

func (b *Bucket) pushFront(e *entry) {
	b.pending = append(b.pending, nil)
	copy(b.pending[1:], b.pending)
	b.pending[0] = e
}

func (b *Bucket) popFront() *entry {
	if len(b.pending) == 0 {
		return nil
	}
	e := b.pending[0]
	b.pending = b.pending[1:]
	return e
}

// Queue is the per-session, per-direction outgoing priority queue
// described in spec.md §3/§4.2/§4.3: a set of priority Buckets plus a
// single address-keyed table used for overwrite dedup and for NAK
// obsolescence checks.
type Queue struct {
	mu      sync.Mutex
	buckets map[uint8]*Bucket
	addrs   map[string]*entry

	// addrGen is the generation counter for each address, tracked
	// independently of any one entry object: a superseded entry keeps
	// its own (now stale) generation field, while the replacement
	// entry is stamped with the next value from here, so the two can
	// never collide even though every freshly allocated entry would
	// otherwise start from a zero-value generation field.
	addrGen map[string]uint64
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		buckets: make(map[uint8]*Bucket),
		addrs:   make(map[string]*entry),
		addrGen: make(map[string]uint64),
	}
}

func (q *Queue) bucket(priority uint8) *Bucket {
	b := q.buckets[priority]
	if b == nil {
		b = &Bucket{Priority: priority}
		q.buckets[priority] = b
	}
	return b
}

// Buckets returns every non-empty bucket, for the scheduler's two-pass
// weighted-fair walk (spec.md §4.3). Order is not significant; the
// scheduler partitions by priority relative to DefaultPriority itself.
func (q *Queue) Buckets() []*Bucket {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Bucket, 0, len(q.buckets))
	for _, b := range q.buckets {
		if b.Len() > 0 {
			out = append(out, b)
		}
	}
	return out
}

// Push enqueues c. If c.Address is non-empty and a pending command with
// the same address already sits in a bucket, it is replaced in place
// (address-share dedup, spec.md §4.2); the FIFO position is preserved.
// If the existing holder of that address has already been sent (i.e. it
// is owned by the sent-packet history), the old entry is left in place
// for obsolescence bookkeeping — reading a dead generation — while a
// brand new pending entry is appended for this push.
func (q *Queue) Push(c *Command) {
	if c.Priority == 0 && !c.IsSystem() {
		c.Priority = DefaultPriority
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	addr := string(c.Address)
	if addr != "" && c.Coalesce {
		if old, found := q.addrs[addr]; found {
			if old.st == statePending {
				old.cmd = c
				q.addrGen[addr]++
				old.generation = q.addrGen[addr]
				return
			}
			// old is owned by sent-packet history; supersede it by
			// generation so a later NAK treats it as obsolete, and
			// enqueue a fresh pending entry for the new value. old
			// keeps its own (now stale) generation field — only the
			// counter advances here.
			q.addrGen[addr]++
		}
	}

	e := &entry{cmd: c, st: statePending}
	if addr != "" {
		e.generation = q.addrGen[addr]
		q.addrs[addr] = e
	}
	q.bucket(c.Priority).pushBack(e)
}

// Pop removes and returns the oldest pending command from the given
// bucket, transitioning its ownership to "sent" and returning the Handle
// a sent-packet record should keep for later ACK/NAK resolution.
func (b *Bucket) pop(q *Queue) (*Command, Handle, bool) {
	e := b.popFront()
	if e == nil {
		return nil, Handle{}, false
	}
	e.st = stateSent
	return e.cmd, Handle{Address: string(e.cmd.Address), Generation: e.generation, Priority: b.Priority}, true
}

// Pop pops the oldest pending command from the bucket with the given
// priority.
func (q *Queue) Pop(priority uint8) (*Command, Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bucket(priority).pop(q)
}

// Ack destroys the command referenced by h: it is no longer retransmitted
// and its address slot is freed for reuse.
func (q *Queue) Ack(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if h.Address == "" {
		return
	}
	if e, found := q.addrs[h.Address]; found && e.generation == h.Generation {
		delete(q.addrs, h.Address)
	}
}

// Nak re-enqueues the command referenced by h at the head of its
// original priority bucket, unless it has since been superseded by a
// newer push (spec.md §4.5, §8 property #6). It reports whether a
// retransmission was scheduled.
func (q *Queue) Nak(h Handle, cmd *Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if h.Address == "" {
		// never-coalescing command: always eligible, no supersede to check
		e := &entry{cmd: cmd, st: statePending}
		q.bucket(h.Priority).pushFront(e)
		return true
	}

	e, found := q.addrs[h.Address]
	if !found || e.generation != h.Generation || e.st != stateSent {
		return false // obsolete: superseded or already acked
	}

	e.st = statePending
	q.bucket(h.Priority).pushFront(e)
	return true
}
