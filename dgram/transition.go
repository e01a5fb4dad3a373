package dgram

import (
	"github.com/pascaldekloe/verse/packet"
)

// HandlePacket drives the state machine from an incoming datagram,
// implementing the transition table of spec.md §4.6. It processes the
// datagram's system commands first via HandleSystem, then applies the
// state transition the header's flags and current state call for. In a
// state that has no transitions for the connection's role (such as
// Reserved or Closed) it returns ErrWrongState; in the other states a
// datagram whose flags match no transition leaves the state unchanged
// and HandlePacket returns nil.
func (c *Conn) HandlePacket(dg *packet.Datagram) error {
	for _, sys := range dg.Sys {
		if err := c.HandleSystem(sys); err != nil {
			return err // cookie check failed: drop the whole packet
		}
	}
	if len(dg.Body) > 0 {
		c.decodeBody(dg.Body)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.role {
	case Client:
		return c.handleClientPacket(dg)
	default:
		return c.handleServerPacket(dg)
	}
}

// handleClientPacket must be called with c.mu held.
func (c *Conn) handleClientPacket(dg *packet.Datagram) error {
	switch c.state {
	case Request:
		// PAY|ACK|SYN moves to PARTOPEN and records peer_id/rwin (the
		// CC method arrives through HandleSystem). Only the flags are
		// checked; no ACK command for host_id is required.
		if dg.Header.Flags.Has(packet.FlagACK) && dg.Header.Flags.Has(packet.FlagSYN) {
			c.PeerID = dg.Header.PayloadID
			c.RWinPeer = uint32(dg.Header.Window)
			c.setState(PartOpen)
		}
		return nil

	case PartOpen:
		// PAY|ACK|ANK finalizes negotiation and opens. Only the flags
		// are checked; the header's ids are not compared.
		if dg.Header.Flags.Has(packet.FlagACK) && dg.Header.Flags.Has(packet.FlagANK) {
			c.setState(Open)
		}
		return nil

	case Open, Closing:
		if dg.Header.Flags.Has(packet.FlagFIN) {
			c.finAckPending = true
			c.setState(Closed)
			return nil
		}
		return nil

	default:
		return ErrWrongState
	}
}

// handleServerPacket must be called with c.mu held.
func (c *Conn) handleServerPacket(dg *packet.Datagram) error {
	switch c.state {
	case Listen:
		// PAY|SYN records the client's anchor as peer_id and moves to
		// RESPOND. A CHANGE_L/CONFIRM_L cookie that fails its check has
		// already made HandleSystem drop the packet; a SYN carrying no
		// cookie command is not rejected.
		if dg.Header.Flags.Has(packet.FlagSYN) {
			c.PeerID = dg.Header.PayloadID
			c.setState(Respond)
		}
		return nil

	case Respond:
		// PAY|ACK|ANK confirming proposals: "connect" and go OPEN.
		if dg.Header.Flags.Has(packet.FlagACK) && dg.Header.Flags.Has(packet.FlagANK) {
			c.setState(Open)
		}
		return nil

	case Open, CloseReq:
		if dg.Header.Flags.Has(packet.FlagFIN) {
			c.finAckPending = true
			c.setState(Closed)
			return nil
		}
		return nil

	default:
		return ErrWrongState
	}
}

// RequestClose moves an OPEN connection into its graceful-close state —
// CLOSEREQ for the server, CLOSING for the client — after which outgoing
// payload packets carry FIN (spec.md §4.6: "(server) OPEN: application
// requests close: CLOSEREQ: future payload packets carry FIN").
func (c *Conn) RequestClose() bool {
	next := Closing
	if c.role == Server {
		next = CloseReq
	}
	return c.CompareAndSetState(Open, next)
}
