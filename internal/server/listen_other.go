//go:build !linux

package server

import (
	"fmt"
	"net"
	"net/netip"

	"grimm.is/denatd/internal/logging"
)

// Backlog is the listen queue length requested on Linux. Other platforms use
// the system default.
const Backlog = 1

// Listen binds a TCP listening socket on addr.
func Listen(addr netip.AddrPort, logger *logging.Logger) (net.Listener, error) {
	if logger == nil {
		logger = logging.Default()
	}

	network := "tcp6"
	if addr.Addr().Is4() {
		network = "tcp4"
	}
	l, err := net.Listen(network, addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger.WithComponent("server").Info("listening",
		"addr", addr.Addr().String(), "port", listenPort(l, addr))
	return l, nil
}
