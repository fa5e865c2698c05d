// Package network enumerates the host's interface addresses.
//
// # Overview
//
// The [Enumerator] walks every link and every IPv4/IPv6 address the kernel
// reports and appends one "<interface> <address>" line per IP address to a
// response buffer. Entries come out in the order getifaddrs(3) produces them:
// the link-layer entry of each link first, then all IPv4 addresses, then all
// IPv6 addresses.
//
// # Dependencies
//
// Uses github.com/vishvananda/netlink behind the [Netlinker] interface so the
// enumerator can be driven by [MockNetlinker] in tests.
//
// # Example
//
//	enum := network.NewEnumerator(&network.RealNetlinker{}, logger)
//	if err := enum.Collect(buf); err != nil {
//	    return err
//	}
package network
