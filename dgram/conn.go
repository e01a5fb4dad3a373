package dgram

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/pascaldekloe/verse/ackhist"
	"github.com/pascaldekloe/verse/command"
	"github.com/pascaldekloe/verse/negotiate"
	"github.com/pascaldekloe/verse/packet"
	"github.com/pascaldekloe/verse/sched"
	"github.com/pascaldekloe/verse/syscmd"
	"github.com/pascaldekloe/verse/wire"
)

// Unlimited is the flow/congestion window ceiling used when the
// negotiated method is NONE (spec.md §4.6: "both cwin and rwin_host are
// set to 0xFFFFFFFF when their respective method is NONE").
const Unlimited uint32 = 0xFFFFFFFF

var (
	ErrTimeout       = errors.New("dgram: state timed out")
	ErrMaxAttempts   = errors.New("dgram: max connection attempts exceeded")
	ErrBadCookie     = errors.New("dgram: cookie check failed, packet dropped")
	ErrWrongState    = errors.New("dgram: packet not valid for current state")
)

// Conn is one datagram connection's state machine, client or server
// side, per spec.md §4.6. The zero value is not usable; construct with
// NewClient or NewServer.
type Conn struct {
	mu    sync.Mutex
	role  Role
	state State

	stateEntered time.Time
	attempt      int

	backoff Backoff
	timeout time.Duration // VRS_TIMEOUT: max age of a non-OPEN state, and max silence in OPEN

	HostID, PeerID uint32 // payload-id space anchors exchanged during handshake

	CWin, RWinHost uint32 // congestion / receive window, in octets
	RWinPeer       uint32

	Negotiate *negotiate.Set
	Out       *command.Queue
	In        *command.Queue
	Sent      *ackhist.SentHistory
	AckNak    *ackhist.AckNakVector
	Scheduler *sched.Scheduler

	// AddrLen resolves the address-octet length a node-command family
	// (id) carries, so decodeBody can split an inbound body into
	// Commands without this core knowing the scene-graph schema itself
	// (the families themselves are an opaque, non-goal concern). Nil
	// decodes every family as addressless.
	AddrLen func(id uint8) int

	lastRecv      time.Time
	finAckPending bool // one PAY|ACK|FIN owed after receiving a peer's FIN
}

func newConn(role Role, initial State) *Conn {
	c := &Conn{
		role:         role,
		state:        initial,
		stateEntered: time.Now(),
		backoff:      DefaultBackoff(),
		timeout:      30 * time.Second,
		HostID:       randomPayloadID(),
		Negotiate:    negotiate.NewSet(),
		Out:          command.NewQueue(),
		In:           command.NewQueue(),
		Sent:         ackhist.NewSentHistory(),
		AckNak:       ackhist.NewAckNakVector(),
	}
	c.Scheduler = sched.New(c.Out, sched.DefaultPacing())
	return c
}

// randomPayloadID returns a random 32-bit payload-id space anchor
// (spec.md §4.6 glossary: "host id: random 32-bit seed for outgoing
// payload ids"), drawn from the same crypto/rand source package
// handshake uses for its cookies.
func randomPayloadID() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("dgram: system randomness unavailable: " + err.Error())
	}
	v, _, _ := wire.U32(b[:])
	return v
}

// NewClient returns a Conn beginning its Request/PartOpen/Open/Closing
// sequence.
func NewClient() *Conn { return newConn(Client, Request) }

// NewServer returns a Conn beginning its Listen/Respond/Open/CloseReq
// sequence.
func NewServer() *Conn { return newConn(Server, Listen) }

// State returns the current state under the connection's mutex, per
// spec.md §5's "cmp_state and set_state pairs" convention.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions to next, resetting the per-state attempt counter
// and entry timestamp (spec.md §4.6: "Per-state attempt counter is reset
// on entry").
func (c *Conn) setState(next State) {
	c.state = next
	c.stateEntered = time.Now()
	c.attempt = 0
}

// CompareAndSetState performs the transition only if the connection is
// currently in from, returning whether it did.
func (c *Conn) CompareAndSetState(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.setState(to)
	return true
}

// Expired reports whether the current state has aged past its deadline:
// VRS_TIMEOUT for OPEN's silence check, or the same timeout as an
// overall ceiling on a handshake/teardown state regardless of attempt
// backoff (spec.md §4.6: "any non-OPEN: state-began timestamp aged >
// VRS_TIMEOUT: CLOSED" and "OPEN: no valid packet received for
// VRS_TIMEOUT: CLOSED").
func (c *Conn) Expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Open {
		last := c.lastRecv
		if last.IsZero() {
			last = c.stateEntered
		}
		return now.Sub(last) > c.timeout
	}
	if c.state == Closed {
		return false
	}
	return now.Sub(c.stateEntered) > c.timeout
}

// NoteReceived marks now as the last time a valid packet arrived, for
// the OPEN-state silence check.
func (c *Conn) NoteReceived(now time.Time) {
	c.mu.Lock()
	c.lastRecv = now
	c.mu.Unlock()
}

// NextAttempt increments and returns the per-state retransmit attempt
// counter, along with whether max_connection_attempts has been
// exceeded (spec.md §4.6: "exceeding max_connection_attempts is
// fatal").
func (c *Conn) NextAttempt() (attempt int, exceeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.attempt, c.attempt > c.backoff.MaxAttempts
}

// BackoffWait returns the retry delay for the current attempt count.
func (c *Conn) BackoffWait() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff.Wait(c.attempt)
}

// applyMethodFloor sets CWin/RWinHost to Unlimited whenever the
// negotiated method is NONE, per spec.md §4.6's flow/congestion floor.
func (c *Conn) applyMethodFloor() {
	if negotiate.Method(c.Negotiate.FlowControl.Value()) == negotiate.MethodNone {
		c.RWinHost = Unlimited
	}
	if negotiate.Method(c.Negotiate.Congestion.Value()) == negotiate.MethodNone {
		c.CWin = Unlimited
	}
}

// HandleSystem runs one decoded system command through the negotiator
// and the ACK/NAK pipeline, per spec.md §4.5 and §4.8. It returns
// ErrBadCookie when a cookie command fails its check (a mismatched
// CONFIRM, or a CHANGE_L that differs from a server's seeded cookie),
// which must cause the whole packet to be dropped (anti-spoof).
func (c *Conn) HandleSystem(cmd syscmd.Command) error {
	switch cmd.ID {
	case syscmd.ACK:
		if k, ok := syscmd.RunEnd(cmd.Payload); ok {
			if refs, found := c.Sent.Ack(k); found {
				for _, r := range refs {
					c.Out.Ack(r.Handle)
				}
			}
		}
		return nil

	case syscmd.NAK:
		if k, ok := syscmd.RunEnd(cmd.Payload); ok {
			if refs, found := c.Sent.Nak(k); found {
				for _, r := range refs {
					c.Out.Nak(r.Handle, r.Cmd)
				}
			}
		}
		return nil

	case syscmd.ChangeL, syscmd.ChangeR, syscmd.ConfirmL, syscmd.ConfirmR:
		fc, ok := syscmd.ParseFeatureCmd(cmd.Payload)
		if !ok {
			return nil
		}
		var accept bool
		switch cmd.ID {
		case syscmd.ChangeL:
			if fc.Feature == wire.FeatureCookie && c.role == Server && c.Negotiate.Cookie.Value() != "" {
				// a server seeded from the stream handshake checks the
				// proposed cookie instead of adopting it
				accept = len(fc.StrValues) == 1 && fc.StrValues[0] == c.Negotiate.Cookie.Value()
			} else {
				accept = c.Negotiate.ChangeL(fc.Feature, fc)
			}
		case syscmd.ChangeR:
			accept = c.Negotiate.ChangeR(fc.Feature, fc)
		case syscmd.ConfirmL:
			accept = c.Negotiate.ConfirmL(fc.Feature, fc)
		case syscmd.ConfirmR:
			accept = c.Negotiate.ConfirmR(fc.Feature, fc)
		}
		if !accept && fc.Feature == wire.FeatureCookie {
			return ErrBadCookie
		}
		c.applyMethodFloor()
		return nil
	}
	return nil
}

// BuildDatagram assembles one outgoing datagram for the connection's
// current state, per the transition table in spec.md §4.6: a handshake
// or teardown packet while the state machine is still negotiating, or
// the scheduler-driven payload packet once OPEN. A nil return means
// nothing is owed this tick.
func (c *Conn) BuildDatagram(mtu int, payloadID uint32) (*packet.Datagram, []command.Handle) {
	switch c.State() {
	case Reserved, Listen:
		return nil, nil // server REQUEST-equivalent: waiting on the peer's first move

	case Request:
		return c.buildSyn(), nil

	case Respond:
		return c.buildSynAck(), nil

	case PartOpen:
		return c.buildPartOpenConfirm(), nil

	case Closed:
		if c.takeFinAckOwed() {
			return &packet.Datagram{
				Header: packet.Header{Version: packet.Version, Flags: packet.FlagPAY | packet.FlagACK | packet.FlagFIN, PayloadID: payloadID},
			}, nil
		}
		return nil, nil
	}

	dg, handles := c.buildOpenDatagram(mtu, payloadID)
	if c.State() == Closing || c.State() == CloseReq {
		// spec.md §4.6: "(server) OPEN: application requests close:
		// CLOSEREQ: future payload packets carry FIN" — the client side
		// mirrors this into CLOSING. The FIN keeps riding even a tick
		// with nothing else to send.
		if dg == nil {
			dg = &packet.Datagram{Header: packet.Header{Version: packet.Version, Flags: packet.FlagPAY, PayloadID: payloadID}}
		}
		dg.Header.Flags |= packet.FlagFIN
	}
	return dg, handles
}

// buildOpenDatagram assembles one OPEN-state datagram: system commands
// first (the ACK/NAK runs only; no negotiation commands, FPS included,
// are added here), then the scheduler's node-command batch, up to mtu
// octets total (spec.md §4.3, §4.4).
func (c *Conn) buildOpenDatagram(mtu int, payloadID uint32) (*packet.Datagram, []command.Handle) {
	var sys []syscmd.Command
	for _, r := range c.AckNak.Runs() {
		if r.Kind == ackhist.RunAck {
			sys = append(sys, syscmd.Command{ID: syscmd.ACK, Payload: wire.PutU32(nil, r.High)})
		} else {
			sys = append(sys, syscmd.Command{ID: syscmd.NAK, Payload: wire.PutU32(nil, r.High)})
		}
	}

	budget := mtu - packet.HeaderSize
	for _, s := range sys {
		budget -= 2 + len(s.Payload) // id + length octet + payload, upper bound
	}
	if budget < 0 {
		budget = 0
	}

	batch := c.Scheduler.Plan(budget, c.Negotiate.CmdCompressOut.Value() != 0)
	if len(sys) == 0 && len(batch.Bytes) == 0 && !batch.KeepAlive {
		return nil, nil
	}

	dg := &packet.Datagram{
		Header: packet.Header{
			Version:   packet.Version,
			Flags:     packet.FlagPAY,
			PayloadID: payloadID,
		},
		Sys:  sys,
		Body: batch.Bytes,
	}
	return dg, batch.Handles
}

// buildSyn builds the client's REQUEST-state PAY|SYN, carrying the
// feature proposals a fresh connection negotiates inline (spec.md
// §4.6's REQUEST row). PayloadID is HostID, the anchor the server
// echoes back as peer_id.
func (c *Conn) buildSyn() *packet.Datagram {
	var sys []syscmd.Command
	if cookie := c.Negotiate.Cookie.Value(); cookie != "" {
		sys = append(sys, featureCmd(syscmd.ChangeL, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{cookie}}))
	}
	sys = append(sys, featureCmd(syscmd.ChangeL, wire.FeatureFlowControl, syscmd.FeatureCmd{U8Values: []uint8{uint8(negotiate.MethodNone), uint8(negotiate.MethodTCPLike)}}))
	sys = append(sys, featureCmd(syscmd.ChangeL, wire.FeatureCongestion, syscmd.FeatureCmd{U8Values: []uint8{uint8(negotiate.MethodNone), uint8(negotiate.MethodTCPLike)}}))
	if scale := c.Negotiate.RWinScale.Value(); scale != 0 {
		sys = append(sys, featureCmd(syscmd.ChangeL, wire.FeatureRWinScale, syscmd.FeatureCmd{U8Values: []uint8{scale}}))
	}
	return &packet.Datagram{
		Header: packet.Header{Version: packet.Version, Flags: packet.FlagPAY | packet.FlagSYN, PayloadID: c.HostID},
		Sys:    sys,
	}
}

// buildSynAck builds the server's RESPOND-state PAY|SYN|ACK reply:
// CONFIRM_L(cookie), CHANGE_L/R(flow/congestion control), rwin-scale
// (spec.md §4.6's LISTEN row's "action" column).
func (c *Conn) buildSynAck() *packet.Datagram {
	var sys []syscmd.Command
	if cookie := c.Negotiate.Cookie.Value(); cookie != "" {
		sys = append(sys, featureCmd(syscmd.ConfirmL, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{cookie}}))
	}
	sys = append(sys, featureCmd(syscmd.ChangeL, wire.FeatureFlowControl, syscmd.FeatureCmd{U8Values: []uint8{c.Negotiate.FlowControl.Value()}}))
	sys = append(sys, featureCmd(syscmd.ChangeR, wire.FeatureCongestion, syscmd.FeatureCmd{U8Values: []uint8{c.Negotiate.Congestion.Value()}}))
	if scale := c.Negotiate.RWinScale.Value(); scale != 0 {
		sys = append(sys, featureCmd(syscmd.ChangeL, wire.FeatureRWinScale, syscmd.FeatureCmd{U8Values: []uint8{scale}}))
	}
	return &packet.Datagram{
		Header: packet.Header{Version: packet.Version, Flags: packet.FlagPAY | packet.FlagACK | packet.FlagSYN, PayloadID: c.HostID},
		Sys:    sys,
	}
}

// buildPartOpenConfirm builds the client's PARTOPEN-state PAY|ACK|ANK,
// carrying CONFIRM_L of the cookie and, where applicable, FC/CC/rwin
// scale (spec.md §4.6's PARTOPEN row).
func (c *Conn) buildPartOpenConfirm() *packet.Datagram {
	var sys []syscmd.Command
	if cookie := c.Negotiate.Cookie.Value(); cookie != "" {
		sys = append(sys, featureCmd(syscmd.ConfirmL, wire.FeatureCookie, syscmd.FeatureCmd{StrValues: []string{cookie}}))
	}
	if fc := c.Negotiate.FlowControl.Value(); fc != 0 {
		sys = append(sys, featureCmd(syscmd.ConfirmL, wire.FeatureFlowControl, syscmd.FeatureCmd{U8Values: []uint8{fc}}))
	}
	if cc := c.Negotiate.Congestion.Value(); cc != 0 {
		sys = append(sys, featureCmd(syscmd.ConfirmR, wire.FeatureCongestion, syscmd.FeatureCmd{U8Values: []uint8{cc}}))
	}
	if scale := c.Negotiate.RWinScale.Value(); scale != 0 {
		sys = append(sys, featureCmd(syscmd.ConfirmL, wire.FeatureRWinScale, syscmd.FeatureCmd{U8Values: []uint8{scale}}))
	}
	return &packet.Datagram{
		Header: packet.Header{Version: packet.Version, Flags: packet.FlagPAY | packet.FlagACK | packet.FlagANK, PayloadID: c.HostID},
		Sys:    sys,
	}
}

func featureCmd(id syscmd.ID, feature wire.FeatureID, fc syscmd.FeatureCmd) syscmd.Command {
	fc.Feature = feature
	return syscmd.Command{ID: id, Payload: syscmd.FeatureCmdPayload(fc)}
}

// takeFinAckOwed reports and clears the one-shot "owe a PAY|ACK|FIN"
// flag a just-received peer FIN sets (spec.md §4.6: "(either) OPEN/
// CLOSEREQ: receive PAY|FIN: CLOSED: reply PAY|ACK|FIN").
func (c *Conn) takeFinAckOwed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	owed := c.finAckPending
	c.finAckPending = false
	return owed
}

// decodeBody splits dg.Body — the opaque node-command body (spec.md §6)
// — into Commands and pushes them onto In for the session's DataThread
// to drain (spec.md §2: "surviving payload bytes hand to C1 for
// node-command decode -> typed commands enter the session's incoming
// queue"). A command whose id resolves to no configured address length
// decodes addressless; this core never inspects a command's semantics,
// only its framing.
func (c *Conn) decodeBody(body []byte) {
	for len(body) > 0 {
		id, _, ok := wire.U8(body)
		if !ok {
			return
		}
		addrLen := 0
		if c.AddrLen != nil {
			addrLen = c.AddrLen(id)
		}
		cmds, rest, ok := command.UnpackGroup(body, addrLen)
		if !ok {
			return // malformed trailer: drop the remainder of the datagram
		}
		for _, cmd := range cmds {
			c.In.Push(cmd)
		}
		body = rest
	}
}
