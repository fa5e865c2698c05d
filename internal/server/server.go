// Package server accepts client connections one at a time and answers each
// with the host's addresses and delegated prefix.
//
// Every connection runs the same steps: reset the response buffer, collect
// interface addresses, collect the prefix, write the response, close. Nothing
// is kept between connections.
package server

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"grimm.is/denatd/internal/clock"
	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/response"
)

// Collector appends response lines to a buffer. Errors are fatal to the
// server.
type Collector interface {
	Collect(buf *response.Buffer) error
}

// Config holds the server's collaborators.
type Config struct {
	Listener net.Listener
	// Addresses produces the interface lines.
	Addresses Collector
	// Prefix produces the prefix line. Nil disables it.
	Prefix Collector

	// BufferSize caps the response. Zero selects response.DefaultCapacity.
	BufferSize int
	// WriteTimeout bounds the response write. Zero blocks until the client
	// has taken the whole response.
	WriteTimeout time.Duration

	Logger  *logging.Logger
	Metrics *metrics.Registry
	Clock   clock.Clock
}

// Server is a single-threaded connection server.
type Server struct {
	listener     net.Listener
	addresses    Collector
	prefix       Collector
	buf          *response.Buffer
	writeTimeout time.Duration
	logger       *logging.Logger
	metrics      *metrics.Registry
	clock        clock.Clock
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	size := cfg.BufferSize
	if size == 0 {
		size = response.DefaultCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Server{
		listener:     cfg.Listener,
		addresses:    cfg.Addresses,
		prefix:       cfg.Prefix,
		buf:          response.New(size),
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.WithComponent("server"),
		metrics:      cfg.Metrics,
		clock:        clock.Or(cfg.Clock),
	}
}

// Serve answers connections until one fails fatally.
func (s *Server) Serve() error {
	for {
		if err := s.ServeOne(); err != nil {
			return err
		}
	}
}

// ServeOne blocks for the next connection and answers it.
//
// Accept, collection and close failures are returned. A write that does not
// deliver the whole response is only logged.
func (s *Server) ServeOne() error {
	conn, err := s.listener.Accept()
	if err != nil {
		return fmt.Errorf("failed to accept connection: %w", err)
	}

	if s.logger.DebugEnabled() {
		peer := peerAddr(conn.RemoteAddr())
		s.logger.Debug("connection from", "addr", peer.Addr().String(), "port", peer.Port())
	}

	s.buf.Reset()

	if err := s.addresses.Collect(s.buf); err != nil {
		conn.Close()
		return fmt.Errorf("failed to collect interface addresses: %w", err)
	}
	if s.prefix != nil {
		if err := s.prefix.Collect(s.buf); err != nil {
			conn.Close()
			return fmt.Errorf("failed to collect prefix: %w", err)
		}
	}

	s.write(conn)
	s.metrics.RecordConnection(s.buf.Truncated())

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	s.logger.Debug("connection closed")
	return nil
}

func (s *Server) write(conn net.Conn) {
	out := s.buf.Response()

	if s.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(s.clock.Now().Add(s.writeTimeout)); err != nil {
			s.logger.Warn("failed to set write deadline", "error", err)
		}
	}

	n, err := conn.Write(out)
	if err != nil || n != len(out) {
		s.logger.Warn("short write", "written", n, "size", len(out), "error", err)
		s.metrics.RecordShortWrite()
	}
}

func peerAddr(addr net.Addr) netip.AddrPort {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.AddrPort()
	}
	ap, _ := netip.ParseAddrPort(addr.String())
	return ap
}

// listenPort reports the bound port, which differs from the requested one
// when port 0 was asked for.
func listenPort(l net.Listener, requested netip.AddrPort) uint16 {
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return requested.Port()
}
