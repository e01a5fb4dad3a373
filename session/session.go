// Package session owns the server's pre-allocated session slots, the
// stream acceptor loop, and the ephemeral UDP port pool, per spec.md
// §4.9. It replaces the per-connection IEC 60870-5-104 Station that
// the original session package spawned one of per TCP socket: here
// every slot is pre-allocated up front and recycled, not created and
// discarded per connection.
package session

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/pascaldekloe/verse/auth"
	"github.com/pascaldekloe/verse/command"
	"github.com/pascaldekloe/verse/dgram"
	"github.com/pascaldekloe/verse/handshake"
	"github.com/pascaldekloe/verse/metrics"
	"github.com/sirupsen/logrus"
)

// Phase is the registry-wide lifecycle state.
type Phase uint8

const (
	Running Phase = iota
	Closing
)

func (p Phase) String() string {
	if p == Closing {
		return "closing"
	}
	return "running"
}

// Session is one pre-allocated slot: a stream handshake plus, once
// NEGOTIATE_COOKIE_DED allocates a data-plane port, the UDP datagram
// connection riding on it.
type Session struct {
	mu sync.Mutex

	Slot     int
	ID       string // fresh UUID per claim, for log correlation across the stream and datagram workers
	Stream   *handshake.Conn
	Datagram *dgram.Conn // nil until a port is allocated
	Port     uint16      // 0 when unallocated

	claimed bool     // true from Accept's claim until release
	conn    net.Conn // accepted socket; nil while unclaimed
}

// Conn returns the accepted stream socket, or nil while the slot is
// unclaimed.
func (s *Session) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Incoming returns the datagram connection's inbound command queue —
// the decoded node commands a client has sent — or nil before a data
// plane has been allocated. This is the seam the excluded client-
// embedding API (SPEC_FULL.md's Non-goals) would drain from directly;
// verseserver.Server.Dispatch is the one already wired by default.
func (s *Session) Incoming() *command.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Datagram == nil {
		return nil
	}
	return s.Datagram.In
}

// Outgoing returns the datagram connection's outbound priority queue, or
// nil before a data plane has been allocated.
func (s *Session) Outgoing() *command.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Datagram == nil {
		return nil
	}
	return s.Datagram.Out
}

func (s *Session) reset(checker auth.Checker, maxAttempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stream = handshake.NewServer(checker, maxAttempts)
	s.Datagram = nil
	s.Port = 0
	s.conn = nil
	s.claimed = false
}

// Registry is the server's slot array, port pool and acceptor.
type Registry struct {
	mu       sync.Mutex
	phase    Phase
	sessions []*Session

	ports       *portPool
	checker     auth.Checker
	maxAttempts int

	metrics *metrics.Set
	log     *logrus.Entry
}

// New pre-allocates slots session slots, each starting in LISTEN, and
// a port pool spanning [portLow, portHigh).
func New(slots int, portLow, portHigh uint16, checker auth.Checker, maxAttempts int, m *metrics.Set, log *logrus.Entry) *Registry {
	r := &Registry{
		sessions:    make([]*Session, slots),
		ports:       newPortPool(portLow, portHigh),
		checker:     checker,
		maxAttempts: maxAttempts,
		metrics:     m,
		log:         log,
	}
	for i := range r.sessions {
		s := &Session{Slot: i}
		s.reset(checker, maxAttempts)
		r.sessions[i] = s
	}
	return r
}

// Phase reports whether the registry is still accepting new work.
func (r *Registry) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// claimListening finds a slot whose stream is LISTEN and not already
// claimed by a concurrent accept, marks it claimed, and returns it;
// nil when every slot is busy (spec.md §4.9's "bump state to
// RESPOND_METHODS" is the handshake's own first-message transition,
// claimed here only gates which slot the acceptor may hand out).
func (r *Registry) claimListening() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.mu.Lock()
		idle := !s.claimed && s.Stream.State() == handshake.Listen
		if idle {
			s.claimed = true
			s.ID = uuid.NewString()
		}
		s.mu.Unlock()
		if idle {
			return s
		}
	}
	return nil
}

// Accept runs the acceptor loop on ln, claiming a LISTEN slot for each
// inbound connection and calling serve on its own goroutine (spec.md
// §4.9's "detached worker thread"). A connection arriving when every
// slot is busy is accepted and immediately closed. Accept returns nil
// once the registry has entered Closing and ln.Accept starts failing.
func (r *Registry) Accept(ln net.Listener, serve func(*Session, net.Conn)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if r.Phase() == Closing {
				return nil
			}
			return err
		}

		s := r.claimListening()
		if s == nil {
			conn.Close()
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		r.metrics.SessionOpened()
		go func() {
			defer r.release(s)
			serve(s, conn)
		}()
	}
}

// AllocatePort reserves a data-plane port for s, to be called on entry
// to NEGOTIATE_COOKIE_DED so the datagram worker can be spawned and
// listening before the server's reply carries the concrete host_url
// (spec.md §4.9).
func (r *Registry) AllocatePort(s *Session) (uint16, error) {
	port, err := r.ports.allocate()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.Port = port
	s.mu.Unlock()
	r.metrics.SetPortsInUse(r.ports.inUse())
	return port, nil
}

// release tears a slot back down to LISTEN: frees its port, closes its
// socket and resets its handshake state for reuse.
func (r *Registry) release(s *Session) {
	s.mu.Lock()
	port := s.Port
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if port != 0 {
		r.ports.free(port)
		r.metrics.SetPortsInUse(r.ports.inUse())
	}

	s.reset(r.checker, r.maxAttempts)
	r.metrics.SessionClosed()
}

// Close enters CLOSING: the acceptor stops claiming new slots and
// every session with an open datagram connection is asked to enter
// CLOSEREQ via C6's RequestClose (spec.md §4.9).
func (r *Registry) Close() {
	r.mu.Lock()
	r.phase = Closing
	r.mu.Unlock()

	for _, s := range r.sessions {
		s.mu.Lock()
		dg := s.Datagram
		s.mu.Unlock()
		if dg != nil {
			dg.RequestClose()
		}
	}
}

// HandleSignals runs a dedicated goroutine translating SIGINT into
// Close and SIGUSR1 into reload, keeping the pattern spec.md §5
// describes for sigwait-based handling off the worker goroutines.
func (r *Registry) HandleSignals(reload func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGUSR1)
	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGINT:
				if r.log != nil {
					r.log.Info("session: closing on SIGINT")
				}
				r.Close()
			case syscall.SIGUSR1:
				if r.log != nil {
					r.log.Info("session: reloading user database on SIGUSR1")
				}
				if reload != nil {
					reload()
				}
			}
		}
	}()
}
