package config

import (
	"fmt"
	"net/netip"
	"time"

	"grimm.is/denatd/internal/brand"
	"grimm.is/denatd/internal/response"
	"grimm.is/denatd/internal/route"
)

// CurrentSchemaVersion is the schema version written by this release.
const CurrentSchemaVersion = "1.0"

// Address families.
const (
	FamilyIPv4 = "ipv4"
	FamilyIPv6 = "ipv6"
)

// Prefix source kinds.
const (
	PrefixSourceNetlink = "netlink"
	PrefixSourceFile    = "file"
)

// Config is the daemon configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional"`

	// Family is FamilyIPv6 (default, also accepts IPv4 clients through
	// mapped addresses) or FamilyIPv4.
	Family string `hcl:"family,optional"`
	// Listen is the local address to bind. Empty binds the wildcard address
	// of Family.
	Listen string `hcl:"listen,optional"`
	Port   int    `hcl:"port,optional"`

	Debug   bool `hcl:"debug,optional"`   // log to stderr instead of syslog
	Verbose bool `hcl:"verbose,optional"` // enable debug messages

	// Protocol is the routing protocol identifier of delegated prefix routes.
	Protocol      int    `hcl:"protocol,optional"`
	PrefixLengths []int  `hcl:"prefix_lengths,optional"`
	PrefixSource  string `hcl:"prefix_source,optional"`
	PrefixFile    string `hcl:"prefix_file,optional"`

	BufferSize   int    `hcl:"buffer_size,optional"`
	WriteTimeout string `hcl:"write_timeout,optional"` // e.g. "5s"; empty blocks

	// MetricsListen is a host:port serving Prometheus metrics. Empty disables.
	MetricsListen string `hcl:"metrics_listen,optional"`

	Syslog *SyslogConfig `hcl:"syslog,block"`
}

// SyslogConfig selects a remote syslog server instead of the local socket.
type SyslogConfig struct {
	Host     string `hcl:"host"`
	Port     int    `hcl:"port,optional"`     // Default: 514
	Protocol string `hcl:"protocol,optional"` // udp or tcp (default: udp)
	Tag      string `hcl:"tag,optional"`      // Default: denatd
	Facility int    `hcl:"facility,optional"` // Default: 1 (user)
}

// Default returns the built-in configuration.
func Default() *Config {
	policy := route.DefaultPolicy()
	return &Config{
		SchemaVersion: CurrentSchemaVersion,
		Family:        FamilyIPv6,
		Port:          int(brand.DefaultPort),
		Protocol:      int(policy.Protocol),
		PrefixLengths: policy.PrefixLengths,
		PrefixSource:  PrefixSourceNetlink,
		PrefixFile:    brand.DefaultPrefixFile(),
		BufferSize:    response.DefaultCapacity,
	}
}

// ListenAddrPort returns the socket address to bind.
func (c *Config) ListenAddrPort() (netip.AddrPort, error) {
	if c.Listen == "" {
		if c.Family == FamilyIPv4 {
			return netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(c.Port)), nil
		}
		return netip.AddrPortFrom(netip.IPv6Unspecified(), uint16(c.Port)), nil
	}

	addr, err := netip.ParseAddr(c.Listen)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	return netip.AddrPortFrom(addr, uint16(c.Port)), nil
}

// Policy returns the route selection policy.
func (c *Config) Policy() route.Policy {
	return route.Policy{
		Protocol:      uint8(c.Protocol),
		PrefixLengths: append([]int(nil), c.PrefixLengths...),
	}
}

// WriteTimeoutDuration parses WriteTimeout. Empty means no timeout.
func (c *Config) WriteTimeoutDuration() (time.Duration, error) {
	if c.WriteTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.WriteTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid write_timeout %q: %w", c.WriteTimeout, err)
	}
	return d, nil
}
