package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/network"
	"grimm.is/denatd/internal/response"
	"grimm.is/denatd/internal/route"
)

// lines is a Collector appending fixed lines.
type lines []string

func (l lines) Collect(buf *response.Buffer) error {
	for _, line := range l {
		if err := buf.Appendf("%s", line); err != nil && !errors.Is(err, response.ErrTruncated) {
			return err
		}
	}
	return nil
}

type failing struct{ err error }

func (f failing) Collect(*response.Buffer) error { return f.err }

func testLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelDebug, Output: buf})
}

func loopback(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

// fetch connects to l and reads until the server closes the connection.
func fetch(t *testing.T, l net.Listener) string {
	t.Helper()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func serveOneAsync(s *Server) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.ServeOne() }()
	return done
}

func TestServer_ServeOne(t *testing.T) {
	var logs bytes.Buffer
	l := loopback(t)
	reg := metrics.New(prometheus.NewRegistry())

	s := New(Config{
		Listener:  l,
		Addresses: lines{"lo 127.0.0.1\n", "eth0 192.0.2.5\n"},
		Prefix:    lines{"__PREFIX__ 2001:db8:1234:5600::/56\n"},
		Logger:    testLogger(&logs),
		Metrics:   reg,
	})

	done := serveOneAsync(s)
	got := fetch(t, l)
	require.NoError(t, <-done)

	assert.Equal(t, "lo 127.0.0.1\neth0 192.0.2.5\n__PREFIX__ 2001:db8:1234:5600::/56\n", got)
	assert.Contains(t, logs.String(), "connection from addr=127.0.0.1")
	assert.Contains(t, logs.String(), "connection closed")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Connections))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.Truncations))
}

func TestServer_NoPeerLogWithoutDebug(t *testing.T) {
	var logs bytes.Buffer
	l := loopback(t)

	s := New(Config{
		Listener:  l,
		Addresses: lines{"lo 127.0.0.1\n"},
		Logger:    logging.New(logging.Config{Level: logging.LevelInfo, Output: &logs}),
	})

	done := serveOneAsync(s)
	assert.Equal(t, "lo 127.0.0.1\n", fetch(t, l))
	require.NoError(t, <-done)
	assert.Empty(t, logs.String())
}

func TestServer_ResponsesAreIdempotent(t *testing.T) {
	l := loopback(t)
	s := New(Config{
		Listener:  l,
		Addresses: lines{"eth0 192.0.2.5\n"},
		Prefix:    lines{"__PREFIX__ 2001:db8::/48\n"},
		Logger:    testLogger(&bytes.Buffer{}),
	})

	var responses []string
	for i := 0; i < 3; i++ {
		done := serveOneAsync(s)
		responses = append(responses, fetch(t, l))
		require.NoError(t, <-done)
	}
	assert.Equal(t, responses[0], responses[1])
	assert.Equal(t, responses[1], responses[2])
}

func TestServer_TruncatedResponseHasNoPartialLine(t *testing.T) {
	var logs bytes.Buffer
	l := loopback(t)
	reg := metrics.New(prometheus.NewRegistry())

	s := New(Config{
		Listener:   l,
		Addresses:  lines{"eth0 192.0.2.5\n", "eth1 198.51.100.20\n"},
		BufferSize: 24,
		Logger:     testLogger(&logs),
		Metrics:    reg,
	})

	done := serveOneAsync(s)
	got := fetch(t, l)
	require.NoError(t, <-done)

	assert.Equal(t, "eth0 192.0.2.5\n", got)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Truncations))
}

func TestServer_CollectorErrorIsFatal(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "addresses",
			cfg:  Config{Addresses: failing{errors.New("netlink: permission denied")}},
			want: "failed to collect interface addresses",
		},
		{
			name: "prefix",
			cfg: Config{
				Addresses: lines{"lo 127.0.0.1\n"},
				Prefix:    failing{errors.New("recvmsg: bad file descriptor")},
			},
			want: "failed to collect prefix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := loopback(t)
			tt.cfg.Listener = l
			tt.cfg.Logger = testLogger(&bytes.Buffer{})
			s := New(tt.cfg)

			done := serveOneAsync(s)
			fetch(t, l)

			err := <-done
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServer_AcceptErrorIsFatal(t *testing.T) {
	l := loopback(t)
	l.Close()

	s := New(Config{Listener: l, Addresses: lines{}, Logger: testLogger(&bytes.Buffer{})})
	err := s.Serve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to accept connection")
}

// shortConn accepts only the first n bytes of every write.
type shortConn struct {
	net.Conn
	n       int
	written bytes.Buffer
}

func (c *shortConn) Write(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.written.Write(p)
}

func (c *shortConn) Close() error         { return nil }
func (c *shortConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IP{192, 0, 2, 9}, Port: 40000} }

type oneConnListener struct {
	net.Listener
	conn net.Conn
}

func (l *oneConnListener) Accept() (net.Conn, error) {
	if l.conn == nil {
		return nil, net.ErrClosed
	}
	c := l.conn
	l.conn = nil
	return c, nil
}

func TestServer_ShortWriteIsWarning(t *testing.T) {
	var logs bytes.Buffer
	conn := &shortConn{n: 5}
	reg := metrics.New(prometheus.NewRegistry())

	s := New(Config{
		Listener:  &oneConnListener{conn: conn},
		Addresses: lines{"eth0 192.0.2.5\n"},
		Logger:    testLogger(&logs),
		Metrics:   reg,
	})

	require.NoError(t, s.ServeOne())
	assert.Equal(t, "eth0 ", conn.written.String())
	assert.Contains(t, logs.String(), "short write")
	assert.Contains(t, logs.String(), "connection from addr=192.0.2.9 port=40000")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ShortWrites))

	// The listener is now exhausted.
	assert.ErrorIs(t, s.Serve(), net.ErrClosed)
}

func TestServer_EndToEnd(t *testing.T) {
	nl := new(network.MockNetlinker)
	nl.On("LinkList").Return([]netlink.Link{
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "lo", Index: 1}},
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth0", Index: 2}},
	}, nil)
	nl.On("AddrList", nil, network.FamilyInet).Return([]netlink.Addr{
		{IPNet: &net.IPNet{IP: net.IPv4(127, 0, 0, 1).To4(), Mask: net.CIDRMask(8, 32)}, LinkIndex: 1},
		{IPNet: &net.IPNet{IP: net.IPv4(192, 0, 2, 5).To4(), Mask: net.CIDRMask(24, 32)}, LinkIndex: 2},
	}, nil)
	nl.On("AddrList", nil, network.FamilyInet6).Return([]netlink.Addr{
		{IPNet: &net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)}, LinkIndex: 2},
	}, nil)

	prefixFile := filepath.Join(t.TempDir(), "dhclient6-prefix")
	require.NoError(t, os.WriteFile(prefixFile, []byte("2001:db8:1234:5600::/56\n"), 0o644))

	var logs bytes.Buffer
	logger := testLogger(&logs)
	l := loopback(t)

	s := New(Config{
		Listener:  l,
		Addresses: network.NewEnumerator(nl, logger),
		Prefix:    route.NewFileSource(prefixFile, logger),
		Logger:    logger,
	})

	done := serveOneAsync(s)
	got := fetch(t, l)
	require.NoError(t, <-done)

	assert.Equal(t,
		"lo 127.0.0.1\neth0 192.0.2.5\neth0 fe80::1\n__PREFIX__ 2001:db8:1234:5600::/56\n",
		got)
}
