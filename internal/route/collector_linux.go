//go:build linux

package route

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/denatd/internal/clock"
	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/response"
)

// Dial opens the route netlink channel. The channel joins no multicast groups,
// so it only ever carries replies to our own requests.
func Dial() (*netlink.Conn, error) {
	conn, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open route netlink channel: %w", err)
	}
	return conn, nil
}

// Collector looks up the delegated prefix in the kernel IPv6 routing table.
// It is not safe for concurrent use.
type Collector struct {
	conn    *netlink.Conn
	policy  Policy
	clock   clock.Clock
	logger  *logging.Logger
	metrics *metrics.Registry
}

// NewCollector creates a collector that queries over conn. The connection
// stays open for the life of the collector.
func NewCollector(conn *netlink.Conn, policy Policy, clk clock.Clock, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Collector{
		conn:   conn,
		policy: policy,
		clock:  clock.Or(clk),
		logger: logger.WithComponent("route"),
	}
}

// SetMetrics records lookup outcomes in m.
func (c *Collector) SetMetrics(m *metrics.Registry) {
	c.metrics = m
}

// Lookup dumps the IPv6 routing table and returns the single route that
// matches the policy.
//
// Channel failures and malformed replies are returned as errors. Routes
// without a destination or with a prefix length the policy rejects are
// skipped with a warning.
func (c *Collector) Lookup() (Result, error) {
	body, err := (&rtnetlink.RouteMessage{Family: unix.AF_INET6}).MarshalBinary()
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode route dump request: %w", err)
	}

	req, err := c.conn.Send(netlink.Message{
		Header: netlink.Header{
			Type:     unix.RTM_GETROUTE,
			Flags:    netlink.Request | netlink.Dump,
			Sequence: clock.Seconds(c.clock),
		},
		Data: body,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to send route dump request: %w", err)
	}

	var (
		candidate RouteRecord
		found     bool
	)

	for {
		// Receive drains a multi-part reply up to its done marker and strips
		// the marker, so an empty batch is an empty dump.
		msgs, err := c.conn.Receive()
		if err != nil {
			return Result{}, fmt.Errorf("failed to receive route dump: %w", err)
		}
		if len(msgs) == 0 {
			break
		}

		ours := false
		done := false
		for _, m := range msgs {
			if m.Header.Sequence != req.Header.Sequence || m.Header.PID != req.Header.PID {
				continue
			}
			ours = true

			if m.Header.Type == netlink.Done {
				done = true
				break
			}
			if m.Header.Type != unix.RTM_NEWROUTE {
				continue
			}

			rec, err := ParseRoute(m.Data)
			if err != nil {
				return Result{}, err
			}
			if !c.qualifies(rec) {
				continue
			}

			if found {
				c.logger.Warn("multiple valid routes",
					"first", candidate.Prefix(), "second", rec.Prefix())
				return Result{Kind: Ambiguous}, nil
			}
			candidate, found = rec, true
		}

		if done || ours {
			break
		}
	}

	if !found {
		return Result{Kind: None}, nil
	}
	return Result{Kind: Found, Prefix: candidate.Prefix()}, nil
}

func (c *Collector) qualifies(rec RouteRecord) bool {
	if rec.Protocol != c.policy.Protocol {
		return false
	}
	if !rec.HasDst() {
		c.logger.Warn("route without destination", "protocol", rec.Protocol)
		return false
	}
	if !c.policy.Allows(rec.PrefixLen) {
		c.logger.Warn("unsupported prefix length", "dst", rec.Dst, "len", rec.PrefixLen)
		return false
	}
	return true
}

// Collect appends "__PREFIX__ <addr>/<len>" when exactly one route matches.
func (c *Collector) Collect(buf *response.Buffer) error {
	res, err := c.Lookup()
	if err != nil {
		return err
	}
	c.metrics.RecordPrefixLookup(res.Kind.String())

	if res.Kind != Found {
		return nil
	}
	c.logger.Debug("prefix found", "prefix", res.Prefix)

	if err := prefixLine(buf, res.Prefix.String()); err != nil {
		if errors.Is(err, response.ErrTruncated) {
			c.logger.Warn("output truncated")
			return nil
		}
		return err
	}
	return nil
}

// ParseRoute decodes the rtmsg header and attributes of an RTM_NEWROUTE
// message body.
func ParseRoute(data []byte) (RouteRecord, error) {
	if len(data) < unix.SizeofRtMsg {
		return RouteRecord{}, fmt.Errorf("route message too short: %d bytes", len(data))
	}

	rec := RouteRecord{
		PrefixLen: int(data[1]),
		Protocol:  data[5],
	}

	ad, err := netlink.NewAttributeDecoder(data[unix.SizeofRtMsg:])
	if err != nil {
		return RouteRecord{}, fmt.Errorf("failed to decode route attributes: %w", err)
	}
	for ad.Next() {
		if ad.Type() != unix.RTA_DST {
			continue
		}
		raw := ad.Bytes()
		if len(raw) != net.IPv6len {
			return RouteRecord{}, fmt.Errorf("invalid route destination length %d", len(raw))
		}
		rec.Dst = netip.AddrFrom16([16]byte(raw))
	}
	if err := ad.Err(); err != nil {
		return RouteRecord{}, fmt.Errorf("failed to decode route attributes: %w", err)
	}

	return rec, nil
}
