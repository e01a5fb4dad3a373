package verseserver

import (
	"context"
	"fmt"
	"net"

	"github.com/pascaldekloe/verse/auth"
	"github.com/pascaldekloe/verse/command"
	"github.com/pascaldekloe/verse/dgram"
	"github.com/pascaldekloe/verse/handshake"
	"github.com/pascaldekloe/verse/metrics"
	"github.com/pascaldekloe/verse/negotiate"
	"github.com/pascaldekloe/verse/packet"
	"github.com/pascaldekloe/verse/session"
	"github.com/pascaldekloe/verse/vconfig"
	"github.com/sirupsen/logrus"
)

// Server ties the session registry, the stream acceptor and the
// datagram workers together.
type Server struct {
	Config   *vconfig.Config
	Registry *session.Registry
	Data     *session.DataThread
	Host     string // advertised host for the concrete host_url

	Log     *logrus.Entry
	Metrics *metrics.Set

	Dispatch func(s *session.Session, cmd *command.Command) // node-command callback
}

// New builds a Server from a checked Config.
func New(cfg *vconfig.Config, host string, checker auth.Checker, m *metrics.Set, log *logrus.Entry) *Server {
	reg := session.New(cfg.SessionSlots, cfg.PortLow, cfg.PortHigh, checker, cfg.MaxAttempts, m, log)
	return &Server{
		Config:   cfg,
		Registry: reg,
		Data:     session.NewDataThread(reg),
		Host:     host,
		Log:      log,
		Metrics:  m,
	}
}

// ListenAndServe runs the stream acceptor and the data thread until ctx
// is cancelled or the listener fails.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.Config.Listen)
	if err != nil {
		return fmt.Errorf("verseserver: %w", err)
	}
	defer ln.Close()

	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.Registry.Close()
		ln.Close()
		close(stop)
	}()

	dispatch := srv.Dispatch
	if dispatch == nil {
		dispatch = func(*session.Session, *command.Command) {}
	}
	go srv.Data.Run(stop, dispatch)

	return srv.Registry.Accept(ln, func(s *session.Session, conn net.Conn) {
		srv.serveStream(s, conn, stop)
	})
}

// serveStream runs the 4-step handshake on one accepted connection,
// allocating a UDP data-plane port and spawning its worker the moment
// the stream enters NEGOTIATE_COOKIE_DED, so the client's first REQUEST
// lands on an already-listening socket (spec.md §4.9).
func (srv *Server) serveStream(s *session.Session, conn net.Conn, stop <-chan struct{}) {
	portAllocated := false

	for {
		hdr := [packet.MessageHeaderSize]byte{}
		if _, err := readFull(conn, hdr[:]); err != nil {
			return
		}
		length, err := packet.PeekLength(hdr)
		if err != nil {
			return
		}

		body := make([]byte, int(length)-packet.MessageHeaderSize)
		if _, err := readFull(conn, body); err != nil {
			return
		}

		raw := append(hdr[:], body...)
		msg, err := packet.UnmarshalMessage(raw)
		if err != nil {
			return
		}

		if !portAllocated && s.Stream.State() == handshake.NegotiateCookieDed {
			if err := srv.allocateDataPlane(s); err != nil {
				if srv.Log != nil {
					srv.Log.WithError(err).Error("verseserver: port allocation failed")
				}
				return
			}
			portAllocated = true
		}

		reply, err := s.Stream.HandleServer(context.Background(), msg.Sys)
		if err != nil {
			return
		}

		if len(reply) > 0 {
			out := &packet.Message{Sys: reply}
			raw, err := out.Marshal()
			if err != nil {
				return
			}
			if _, err := conn.Write(raw); err != nil {
				return
			}
		}

		switch s.Stream.State() {
		case handshake.Closing:
			// UDP takes over; the stream socket is done.
			return
		case handshake.StreamOpen, handshake.Closed:
			return
		}
	}
}

// allocateDataPlane reserves a port, binds a UDP socket on it, and
// starts the session's datagram worker in the background so it is
// already listening before the server's host_url reply goes out.
func (srv *Server) allocateDataPlane(s *session.Session) error {
	port, err := srv.Registry.AllocatePort(s)
	if err != nil {
		return err
	}

	sock, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return err
	}

	dg := dgram.NewServer()
	dg.Negotiate.Seed(s.Stream.PeerCookie, s.Stream.DED, negotiate.MethodNone, negotiate.MethodNone)

	s.Stream.Host = srv.Host
	s.Stream.Port = fmt.Sprintf("%d", port)

	s.Datagram = dg

	worker := &DatagramWorker{Session: s, Conn: dg, Socket: sock, Data: srv.Data}
	go func() {
		defer sock.Close()
		worker.waitForPeer()
		worker.Run(make(chan struct{}))
	}()
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
