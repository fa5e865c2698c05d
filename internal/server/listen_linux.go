//go:build linux

package server

import (
	"fmt"
	"net"
	"net/netip"
	"os"

	"golang.org/x/sys/unix"

	"grimm.is/denatd/internal/logging"
)

// Backlog is the listen queue length. The server handles one client at a
// time, so at most one further connection waits.
const Backlog = 1

// Listen binds a TCP listening socket on addr with a backlog of one. The
// address family follows addr: IPv4 addresses get an AF_INET socket,
// everything else AF_INET6.
func Listen(addr netip.AddrPort, logger *logging.Logger) (net.Listener, error) {
	if logger == nil {
		logger = logging.Default()
	}

	sa, family, err := sockaddr(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create listen socket: %w", os.NewSyscallError("socket", err))
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set SO_REUSEADDR: %w", os.NewSyscallError("setsockopt", err))
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind %s: %w", addr, os.NewSyscallError("bind", err))
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, os.NewSyscallError("listen", err))
	}

	f := os.NewFile(uintptr(fd), "denatd-listener")
	l, err := net.FileListener(f)
	// FileListener holds its own duplicate of the descriptor.
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to wrap listen socket: %w", err)
	}

	logger.WithComponent("server").Info("listening",
		"addr", addr.Addr().String(), "port", listenPort(l, addr))
	return l, nil
}

func sockaddr(addr netip.AddrPort) (unix.Sockaddr, int, error) {
	ip := addr.Addr()
	if ip.Is4() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
	if zone := ip.Zone(); zone != "" {
		ifi, err := net.InterfaceByName(zone)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to resolve zone %q: %w", zone, err)
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return sa, unix.AF_INET6, nil
}
