// Package verseserver wires the registry, handshake and datagram state
// machines into running workers: one stream worker per accepted TCP/TLS
// connection and one datagram worker per negotiated UDP data plane,
// mirroring the one-goroutine-per-role shape of the original stream
// transport's recvLoop/sendLoop/run split.
package verseserver

import (
	"net"
	"time"

	"github.com/pascaldekloe/verse/dgram"
	"github.com/pascaldekloe/verse/packet"
	"github.com/pascaldekloe/verse/session"
)

// DefaultMTU bounds a single outbound datagram's size: 1500 minus an
// IPv4/IPv6-ish header and UDP header, per spec.md §6.
const DefaultMTU = 1452

// DatagramWorker drives one session's UDP connection: it ticks at the
// scheduler's Pacing.FrameTick (a fixed interval that the negotiated
// fps does not change), asks the scheduler for a batch, and feeds
// inbound packets from the socket into the state machine, per spec.md
// §4.6 and §5's suspension-point rules.
type DatagramWorker struct {
	Session *session.Session
	Conn    *dgram.Conn
	Socket  *net.UDPConn
	Peer    *net.UDPAddr
	MTU     int
	Data    *session.DataThread // woken after a packet decodes node commands into Conn.In

	nextPayloadID uint32
}

// notifyIfDecoded wakes the data thread once, only when dg carried node
// commands worth draining (spec.md §2, §4.9's semaphore).
func (w *DatagramWorker) notifyIfDecoded(dg *packet.Datagram) {
	if w.Data != nil && len(dg.Body) > 0 {
		w.Data.Notify()
	}
}

func (w *DatagramWorker) mtu() int {
	if w.MTU == 0 {
		return DefaultMTU
	}
	return w.MTU
}

func (w *DatagramWorker) frameTick() time.Duration {
	if w.Conn.Scheduler == nil {
		return 50 * time.Millisecond
	}
	return w.Conn.Scheduler.Pacing.FrameTick
}

// waitForPeer blocks for the client's first REQUEST datagram, learning
// its source address (the server side has nothing to send to until
// then) and feeding that first packet through the state machine before
// Run's regular loop takes over.
func (w *DatagramWorker) waitForPeer() {
	buf := make([]byte, w.mtu())
	n, peer, err := w.Socket.ReadFromUDP(buf)
	if err != nil {
		return
	}
	w.Peer = peer

	dg, err := packet.Unmarshal(buf[:n])
	if err != nil {
		return
	}
	w.Conn.HandlePacket(dg)
	w.notifyIfDecoded(dg)
}

// Run drives the worker until stop is closed or the connection reaches
// Closed. Reading happens on its own goroutine since net.UDPConn.Read
// blocks; Run's select loop owns every state mutation.
func (w *DatagramWorker) Run(stop <-chan struct{}) {
	recv := make(chan []byte, 8)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		buf := make([]byte, w.mtu())
		for {
			n, err := w.Socket.Read(buf)
			if err != nil {
				return
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case recv <- cp:
			case <-stop:
				return
			}
		}
	}()

	ticker := time.NewTicker(w.frameTick())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case raw := <-recv:
			dg, err := packet.Unmarshal(raw)
			if err != nil {
				continue
			}
			w.Conn.HandlePacket(dg)
			w.notifyIfDecoded(dg)

		case now := <-ticker.C:
			if w.Conn.Expired(now) {
				return
			}
			w.sendTick()
			if w.Conn.State() == dgram.Closed {
				return
			}
		}
	}
}

func (w *DatagramWorker) sendTick() {
	w.nextPayloadID++
	dg, _ := w.Conn.BuildDatagram(w.mtu(), w.nextPayloadID)
	if dg == nil {
		return
	}
	raw, err := dg.Marshal()
	if err != nil {
		return
	}
	w.Socket.WriteToUDP(raw, w.Peer)
}
