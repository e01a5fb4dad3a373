package session

import "github.com/pascaldekloe/verse/command"

// DataThread is the single process-wide consumer of a semaphore that
// session workers post to when they enqueue inbound payload; it wakes,
// drains every session's incoming queue, and dispatches callbacks
// (spec.md §4.9).
type DataThread struct {
	wake chan struct{}
	reg  *Registry
}

// NewDataThread returns a DataThread watching reg's sessions.
func NewDataThread(reg *Registry) *DataThread {
	return &DataThread{wake: make(chan struct{}, 1), reg: reg}
}

// Notify posts to the semaphore. Safe to call from any worker
// goroutine after pushing a command onto a session's incoming queue;
// redundant posts before the consumer wakes are coalesced.
func (d *DataThread) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains every session's incoming queue on each wake-up, calling
// dispatch for every command found, until stop is closed.
func (d *DataThread) Run(stop <-chan struct{}, dispatch func(*Session, *command.Command)) {
	for {
		select {
		case <-stop:
			return
		case <-d.wake:
			d.drainAll(dispatch)
		}
	}
}

func (d *DataThread) drainAll(dispatch func(*Session, *command.Command)) {
	d.reg.mu.Lock()
	sessions := append([]*Session(nil), d.reg.sessions...)
	d.reg.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		dg := s.Datagram
		s.mu.Unlock()
		if dg == nil {
			continue
		}

		for _, b := range dg.In.Buckets() {
			for {
				cmd, _, ok := dg.In.Pop(b.Priority)
				if !ok {
					break
				}
				dispatch(s, cmd)
			}
		}
	}
}
