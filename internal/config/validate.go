package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Family {
	case FamilyIPv4, FamilyIPv6:
	default:
		add("family", "must be %q or %q, got %q", FamilyIPv4, FamilyIPv6, c.Family)
	}

	if c.Listen != "" {
		addr, err := netip.ParseAddr(c.Listen)
		switch {
		case err != nil:
			add("listen", "invalid address %q", c.Listen)
		case c.Family == FamilyIPv4 && !addr.Is4():
			add("listen", "IPv6 address %s conflicts with IPv4 only mode", addr)
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		add("port", "must be between 0 and 65535, got %d", c.Port)
	}
	if c.Protocol < 0 || c.Protocol > 255 {
		add("protocol", "must be between 0 and 255, got %d", c.Protocol)
	}

	if len(c.PrefixLengths) == 0 {
		add("prefix_lengths", "must not be empty")
	}
	for _, l := range c.PrefixLengths {
		if l < 1 || l > 128 {
			add("prefix_lengths", "length %d out of range 1-128", l)
		}
	}

	switch c.PrefixSource {
	case PrefixSourceNetlink:
	case PrefixSourceFile:
		if c.PrefixFile == "" {
			add("prefix_file", "required when prefix_source is %q", PrefixSourceFile)
		}
	default:
		add("prefix_source", "must be %q or %q, got %q", PrefixSourceNetlink, PrefixSourceFile, c.PrefixSource)
	}

	if c.BufferSize < 2 {
		add("buffer_size", "must be at least 2, got %d", c.BufferSize)
	}

	if d, err := c.WriteTimeoutDuration(); err != nil {
		add("write_timeout", "%v", err)
	} else if d < 0 {
		add("write_timeout", "must not be negative")
	}

	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			add("metrics_listen", "invalid address %q: %v", c.MetricsListen, err)
		}
	}

	if c.Syslog != nil {
		if c.Syslog.Host == "" {
			add("syslog.host", "must not be empty")
		}
		switch c.Syslog.Protocol {
		case "", "udp", "tcp":
		default:
			add("syslog.protocol", "must be udp or tcp, got %q", c.Syslog.Protocol)
		}
		if c.Syslog.Port < 0 || c.Syslog.Port > 65535 {
			add("syslog.port", "must be between 0 and 65535, got %d", c.Syslog.Port)
		}
		if c.Syslog.Facility < 0 || c.Syslog.Facility > 23 {
			add("syslog.facility", "must be between 0 and 23, got %d", c.Syslog.Facility)
		}
	}

	return errs
}
