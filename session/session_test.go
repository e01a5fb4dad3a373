package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pascaldekloe/verse/auth"
	"github.com/pascaldekloe/verse/dgram"
	"github.com/pascaldekloe/verse/handshake"
)

type alwaysDeny struct{}

func (alwaysDeny) Check(ctx context.Context, username, secret string) (auth.Identity, error) {
	return auth.Identity{}, auth.ErrNoMatch
}

func TestAcceptClaimsListeningSlot(t *testing.T) {
	reg := New(2, 40000, 40010, alwaysDeny{}, 3, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	served := make(chan *Session, 1)
	go reg.Accept(ln, func(s *Session, conn net.Conn) {
		served <- s
	})

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case s := <-served:
		if s.Stream.State() != handshake.Listen {
			t.Errorf("claimed slot state = %v, want LISTEN", s.Stream.State())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for acceptor to claim a slot")
	}
}

func TestClaimListeningSkipsAlreadyClaimedSlot(t *testing.T) {
	reg := New(1, 40000, 40010, alwaysDeny{}, 3, nil, nil)

	s := reg.claimListening()
	if s == nil {
		t.Fatal("expected to claim the one free slot")
	}
	if reg.claimListening() != nil {
		t.Fatal("second claim on a one-slot registry should find nothing free")
	}

	reg.release(s)
	if reg.claimListening() == nil {
		t.Fatal("slot should be claimable again after release")
	}
}

func TestPortPoolAllocateFreeRoundTrip(t *testing.T) {
	reg := New(1, 41000, 41002, alwaysDeny{}, 3, nil, nil)
	s := reg.sessions[0]

	p1, err := reg.AllocatePort(s)
	if err != nil {
		t.Fatalf("AllocatePort: %v", err)
	}
	if _, err := reg.ports.allocate(); err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if _, err := reg.ports.allocate(); err == nil {
		t.Fatal("expected ErrPortsExhausted on third allocate")
	}

	reg.ports.free(p1)
	if _, err := reg.ports.allocate(); err != nil {
		t.Errorf("allocate after free: %v", err)
	}
}

// TestIncomingOutgoingNilBeforeDataPlane exercises the accessor seam a
// client-embedding caller would drain from directly: nil before a data
// plane exists, the datagram connection's own queues once allocated.
func TestIncomingOutgoingNilBeforeDataPlane(t *testing.T) {
	s := &Session{}
	if s.Incoming() != nil {
		t.Errorf("Incoming() before data plane = non-nil, want nil")
	}
	if s.Outgoing() != nil {
		t.Errorf("Outgoing() before data plane = non-nil, want nil")
	}

	dg := dgram.NewServer()
	s.Datagram = dg
	if s.Incoming() != dg.In {
		t.Errorf("Incoming() = %v, want Datagram.In", s.Incoming())
	}
	if s.Outgoing() != dg.Out {
		t.Errorf("Outgoing() = %v, want Datagram.Out", s.Outgoing())
	}
}

func TestCloseEntersClosingPhase(t *testing.T) {
	reg := New(1, 40000, 40010, alwaysDeny{}, 3, nil, nil)
	if reg.Phase() != Running {
		t.Fatalf("initial phase = %v, want Running", reg.Phase())
	}
	reg.Close()
	if reg.Phase() != Closing {
		t.Fatalf("phase after Close = %v, want Closing", reg.Phase())
	}
}
