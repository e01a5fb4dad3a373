package dgram

import (
	"testing"
	"time"

	"github.com/pascaldekloe/verse/command"
	"github.com/pascaldekloe/verse/packet"
)

// TestHandshakeHappyPath exercises spec.md §8 property #9: a client and
// server Conn walk REQUEST->PARTOPEN->OPEN and LISTEN->RESPOND->OPEN
// given the packets the reference transitions describe.
func TestHandshakeHappyPath(t *testing.T) {
	client := NewClient()
	server := NewServer()

	if client.State() != Request || server.State() != Listen {
		t.Fatalf("unexpected initial states: client=%v server=%v", client.State(), server.State())
	}

	// client -> server: PAY|SYN
	syn := &packet.Datagram{Header: packet.Header{Flags: packet.FlagPAY | packet.FlagSYN, PayloadID: 100}}
	if err := server.HandlePacket(syn); err != nil {
		t.Fatalf("server HandlePacket(SYN): %v", err)
	}
	if server.State() != Respond {
		t.Fatalf("server state = %v, want RESPOND", server.State())
	}

	// server -> client: PAY|ACK|SYN
	synAck := &packet.Datagram{Header: packet.Header{Flags: packet.FlagPAY | packet.FlagACK | packet.FlagSYN, PayloadID: 200}}
	if err := client.HandlePacket(synAck); err != nil {
		t.Fatalf("client HandlePacket(SYN|ACK): %v", err)
	}
	if client.State() != PartOpen {
		t.Fatalf("client state = %v, want PARTOPEN", client.State())
	}

	// client -> server: PAY|ACK|ANK
	ackAnk := &packet.Datagram{Header: packet.Header{Flags: packet.FlagPAY | packet.FlagACK | packet.FlagANK}}
	if err := server.HandlePacket(ackAnk); err != nil {
		t.Fatalf("server HandlePacket(ACK|ANK): %v", err)
	}
	if server.State() != Open {
		t.Fatalf("server state = %v, want OPEN", server.State())
	}

	if err := client.HandlePacket(ackAnk); err != nil {
		t.Fatalf("client HandlePacket(ACK|ANK): %v", err)
	}
	if client.State() != Open {
		t.Fatalf("client state = %v, want OPEN", client.State())
	}
}

// TestBuildDatagramIsStateAware exercises spec.md §4.6's handshake/
// teardown rows: BuildDatagram must emit the flags the current state
// calls for, not always PAY.
func TestBuildDatagramIsStateAware(t *testing.T) {
	client := NewClient()
	dg, _ := client.BuildDatagram(1452, 1)
	if dg == nil || !dg.Header.Flags.Has(packet.FlagSYN) {
		t.Fatalf("REQUEST BuildDatagram = %+v, want FlagSYN set", dg)
	}
	if dg.Header.Flags.Has(packet.FlagACK) {
		t.Errorf("REQUEST packet should not carry ACK")
	}

	server := NewServer()
	server.setState(Respond)
	dg, _ = server.BuildDatagram(1452, 1)
	if dg == nil || !dg.Header.Flags.Has(packet.FlagSYN) || !dg.Header.Flags.Has(packet.FlagACK) {
		t.Fatalf("RESPOND BuildDatagram = %+v, want PAY|ACK|SYN", dg)
	}

	client.setState(PartOpen)
	dg, _ = client.BuildDatagram(1452, 1)
	if dg == nil || !dg.Header.Flags.Has(packet.FlagACK) || !dg.Header.Flags.Has(packet.FlagANK) {
		t.Fatalf("PARTOPEN BuildDatagram = %+v, want PAY|ACK|ANK", dg)
	}

	// Listen has nothing of its own to send.
	listen := NewServer()
	if dg, _ := listen.BuildDatagram(1452, 1); dg != nil {
		t.Errorf("LISTEN BuildDatagram = %+v, want nil", dg)
	}
}

// TestBuildDatagramClosingCarriesFIN exercises the CLOSING/CLOSEREQ row:
// every outgoing packet keeps riding FIN even with nothing else to send,
// and CLOSED replies with exactly one PAY|ACK|FIN once a peer FIN lands.
func TestBuildDatagramClosingCarriesFIN(t *testing.T) {
	c := NewClient()
	c.setState(Open)
	if !c.RequestClose() {
		t.Fatalf("RequestClose from OPEN should succeed")
	}
	if c.State() != Closing {
		t.Fatalf("client state after RequestClose = %v, want CLOSING", c.State())
	}

	dg, _ := c.BuildDatagram(1452, 1)
	if dg == nil || !dg.Header.Flags.Has(packet.FlagFIN) {
		t.Fatalf("CLOSING BuildDatagram = %+v, want FlagFIN set", dg)
	}

	c.finAckPending = true
	c.setState(Closed)
	dg, _ = c.BuildDatagram(1452, 1)
	want := packet.FlagPAY | packet.FlagACK | packet.FlagFIN
	if dg == nil || dg.Header.Flags != want {
		t.Fatalf("CLOSED BuildDatagram flags = %v, want %v", dg.Header.Flags, want)
	}

	// The FIN-ack is one-shot: a second tick has nothing left to send.
	if dg, _ := c.BuildDatagram(1452, 1); dg != nil {
		t.Errorf("second CLOSED BuildDatagram = %+v, want nil", dg)
	}
}

// TestHandlePacketDecodesBodyIntoIn exercises spec.md §2's inbound flow:
// surviving payload bytes decode into Commands and land on In for the
// session's data thread to drain.
func TestHandlePacketDecodesBodyIntoIn(t *testing.T) {
	c := NewClient()
	c.setState(Open)

	cmd := command.New(40, nil, []byte("hello"))
	body := command.PackOne(nil, cmd)

	dg := &packet.Datagram{
		Header: packet.Header{Flags: packet.FlagPAY},
		Body:   body,
	}
	if err := c.HandlePacket(dg); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}

	got, _, ok := c.In.Pop(command.DefaultPriority)
	if !ok {
		t.Fatalf("In queue is empty after decoding a payload body")
	}
	if got.ID != cmd.ID || string(got.Payload) != string(cmd.Payload) {
		t.Errorf("decoded %+v, want %+v", got, cmd)
	}
}

func TestBackoffCapsAtMaxBackoff(t *testing.T) {
	b := Backoff{InitTimeout: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond, MaxAttempts: 20}
	for attempt := 1; attempt <= 20; attempt++ {
		w := b.Wait(attempt)
		if w < b.InitTimeout || w > b.InitTimeout+b.MaxBackoff {
			t.Fatalf("attempt %d: Wait = %v, want within [%v, %v]", attempt, w, b.InitTimeout, b.InitTimeout+b.MaxBackoff)
		}
	}
}

func TestExceedingMaxAttemptsIsFatal(t *testing.T) {
	c := NewClient()
	c.backoff.MaxAttempts = 2

	for i := 0; i < 2; i++ {
		if _, exceeded := c.NextAttempt(); exceeded {
			t.Fatalf("attempt %d reported exceeded early", i+1)
		}
	}
	if _, exceeded := c.NextAttempt(); !exceeded {
		t.Errorf("third attempt should report exceeded with MaxAttempts=2")
	}
}

func TestExpiredNonOpenState(t *testing.T) {
	c := NewClient()
	c.timeout = 10 * time.Millisecond
	if c.Expired(time.Now()) {
		t.Fatalf("freshly entered state should not be expired")
	}
	if !c.Expired(time.Now().Add(20 * time.Millisecond)) {
		t.Errorf("state aged past timeout should be expired")
	}
}
