//go:build windows || plan9

package logging

import (
	"errors"

	"grimm.is/denatd/internal/brand"
)

// SyslogConfig holds syslog destination configuration.
type SyslogConfig struct {
	Network  string
	Address  string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns the local syslog destination.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{Tag: brand.SyslogTag, Facility: 1}
}

// NewSyslog is not supported on this platform.
func NewSyslog(Level, SyslogConfig) (*Logger, error) {
	return nil, errors.New("syslog not supported on this platform")
}
