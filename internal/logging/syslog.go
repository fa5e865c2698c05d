//go:build !windows && !plan9

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"

	"grimm.is/denatd/internal/brand"
)

// SyslogConfig holds syslog destination configuration.
type SyslogConfig struct {
	Network  string // "" for the local syslog socket, otherwise udp or tcp
	Address  string // remote host:port, ignored for the local socket
	Tag      string // syslog tag/app name (default: denatd)
	Facility int    // syslog facility (default: 1 = user)
}

// DefaultSyslogConfig returns the local syslog destination.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Tag:      brand.SyslogTag,
		Facility: 1, // LOG_USER
	}
}

// syslogWriter is the subset of *syslog.Writer used by SyslogHandler.
type syslogWriter interface {
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

// SyslogHandler is a slog.Handler that forwards records to syslog with the
// priority matching the record level. Debug records are sent at info priority
// so that the default syslog filters keep them; they are only emitted at all
// in verbose mode.
type SyslogHandler struct {
	opts  slog.HandlerOptions
	w     syslogWriter
	attrs []slog.Attr
}

// NewSyslogHandler creates a handler writing to w.
func NewSyslogHandler(w syslogWriter, opts *slog.HandlerOptions) *SyslogHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &SyslogHandler{w: w, opts: *opts}
}

// NewSyslog creates a Logger that writes to syslog.
func NewSyslog(level Level, cfg SyslogConfig) (*Logger, error) {
	if cfg.Tag == "" {
		cfg.Tag = brand.SyslogTag
	}
	if cfg.Facility == 0 {
		cfg.Facility = 1
	}
	if cfg.Network != "" && cfg.Address == "" {
		return nil, fmt.Errorf("syslog address is required for network %q", cfg.Network)
	}

	priority := syslog.Priority(cfg.Facility<<3) | syslog.LOG_INFO
	w, err := syslog.Dial(cfg.Network, cfg.Address, priority, cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level)
	return newWithHandler(NewSyslogHandler(w, &slog.HandlerOptions{Level: levelVar}), levelVar), nil
}

// Enabled reports whether the handler is enabled for this level.
func (h *SyslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return enabled(h.opts.Level, level)
}

// Handle handles the Record.
func (h *SyslogHandler) Handle(_ context.Context, r slog.Record) error {
	msg := formatRecord(h.attrs, r)
	switch {
	case r.Level >= slog.LevelError:
		return h.w.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.w.Warning(msg)
	default:
		return h.w.Info(msg)
	}
}

// WithAttrs returns a new handler with the given attributes.
func (h *SyslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SyslogHandler{
		opts:  h.opts,
		w:     h.w,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

// WithGroup returns the handler unchanged; output is flat.
func (h *SyslogHandler) WithGroup(string) slog.Handler {
	return h
}
