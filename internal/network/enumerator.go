package network

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/response"
)

// Enumerator appends the host's interface addresses to a response.
type Enumerator struct {
	nl     Netlinker
	logger *logging.Logger
}

// NewEnumerator creates an enumerator backed by nl. A nil logger selects the
// default logger.
func NewEnumerator(nl Netlinker, logger *logging.Logger) *Enumerator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Enumerator{
		nl:     nl,
		logger: logger.WithComponent("ifaddr"),
	}
}

// Addresses lists every address entry on the host: one link-layer entry per
// link, then the IPv4 addresses, then the IPv6 addresses.
func (e *Enumerator) Addresses() ([]InterfaceAddress, error) {
	links, err := e.nl.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	names := make(map[int]string, len(links))
	entries := make([]InterfaceAddress, 0, len(links)*3)

	for _, link := range links {
		attrs := link.Attrs()
		names[attrs.Index] = attrs.Name

		// Links without a hardware address still get a (zero length)
		// link-layer entry.
		hw := []byte(attrs.HardwareAddr)
		if hw == nil {
			hw = []byte{}
		}
		entries = append(entries, InterfaceAddress{
			Interface: attrs.Name,
			Family:    FamilyPacket,
			Addr:      hw,
		})
	}

	for _, family := range []int{FamilyInet, FamilyInet6} {
		addrs, err := e.nl.AddrList(nil, family)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses (family %d): %w", family, err)
		}

		for _, addr := range addrs {
			name, ok := names[addr.LinkIndex]
			if !ok {
				name = fmt.Sprintf("if%d", addr.LinkIndex)
			}

			var ip []byte
			if addr.IPNet != nil {
				ip = addr.IPNet.IP
			}
			entries = append(entries, InterfaceAddress{
				Interface: name,
				Family:    family,
				Addr:      ip,
			})
		}
	}

	return entries, nil
}

// Collect appends a line for every IPv4 and IPv6 address on the host.
func (e *Enumerator) Collect(buf *response.Buffer) error {
	entries, err := e.Addresses()
	if err != nil {
		return err
	}
	return e.Append(buf, entries)
}

// Append writes "<interface> <address>\n" for every IPv4 and IPv6 entry, in
// order.
//
// Link-layer entries are skipped silently; entries without an address or with
// an unknown family are skipped with a warning. Truncation of the buffer is
// logged, not returned.
func (e *Enumerator) Append(buf *response.Buffer, entries []InterfaceAddress) error {
	truncated := false
	for _, entry := range entries {
		if entry.Addr == nil {
			e.logger.Warn("no address on interface", "interface", entry.Interface)
			continue
		}

		switch entry.Family {
		case FamilyInet, FamilyInet6:
		case FamilyPacket:
			continue
		default:
			e.logger.Warn("unknown address family on interface",
				"interface", entry.Interface, "family", entry.Family)
			continue
		}

		text, err := FormatAddr(entry.Family, entry.Addr)
		if err != nil {
			return fmt.Errorf("interface %s: %w", entry.Interface, err)
		}

		if err := buf.Appendf("%s %s\n", entry.Interface, text); err != nil {
			if errors.Is(err, response.ErrTruncated) {
				truncated = true
				continue
			}
			return err
		}
	}

	if truncated {
		e.logger.Warn("output truncated")
	}
	return nil
}

// FormatAddr renders a raw IP address of the given family in its canonical
// text form.
func FormatAddr(family int, raw []byte) (string, error) {
	ip, ok := netip.AddrFromSlice(raw)
	if !ok {
		return "", fmt.Errorf("invalid address length %d for family %d", len(raw), family)
	}

	switch family {
	case FamilyInet:
		ip = ip.Unmap()
		if !ip.Is4() {
			return "", fmt.Errorf("address %s is not IPv4", net.IP(raw))
		}
	case FamilyInet6:
		if !ip.Is6() {
			return "", fmt.Errorf("address %s is not IPv6", net.IP(raw))
		}
	default:
		return "", fmt.Errorf("unsupported address family %d", family)
	}

	return ip.String(), nil
}
