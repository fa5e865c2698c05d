package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"grimm.is/denatd/internal/brand"
)

// ConsoleHandler is a slog.Handler that writes logs in a human-readable format:
//
//	[TIMESTAMP ]denatd[PID]: [level] component: Message key=value
type ConsoleHandler struct {
	opts       slog.HandlerOptions
	out        io.Writer
	mu         *sync.Mutex
	timeFormat string
	attrs      []slog.Attr
}

// NewConsoleHandler creates a new ConsoleHandler. An empty timeFormat omits
// the timestamp, which suits output captured by a supervisor that stamps
// lines itself.
func NewConsoleHandler(out io.Writer, timeFormat string, opts *slog.HandlerOptions) *ConsoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ConsoleHandler{
		out:        out,
		opts:       *opts,
		mu:         &sync.Mutex{},
		timeFormat: timeFormat,
	}
}

// Enabled reports whether the handler is enabled for this level.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return enabled(h.opts.Level, level)
}

// Handle handles the Record.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	if h.timeFormat != "" {
		t := r.Time
		if t.IsZero() {
			t = time.Now()
		}
		buf = append(buf, t.Format(h.timeFormat)...)
		buf = append(buf, ' ')
	}

	buf = append(buf, fmt.Sprintf("%s[%d]: ", brand.BinaryName, os.Getpid())...)

	buf = append(buf, '[')
	buf = append(buf, strings.ToLower(r.Level.String())...)
	buf = append(buf, "] "...)

	buf = append(buf, formatRecord(h.attrs, r)...)
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

// WithAttrs returns a new handler with the given attributes.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ConsoleHandler{
		opts:       h.opts,
		out:        h.out,
		mu:         h.mu,
		timeFormat: h.timeFormat,
		attrs:      append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

// WithGroup returns the handler unchanged; output is flat.
func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}

func enabled(leveler slog.Leveler, level slog.Level) bool {
	threshold := slog.LevelInfo
	if leveler != nil {
		threshold = leveler.Level()
	}
	return level >= threshold
}

// formatRecord renders "component: message key=value ..." from pre-bound and
// record attributes. The component attribute is promoted to the front.
func formatRecord(bound []slog.Attr, r slog.Record) string {
	var sb strings.Builder

	component := ""
	for _, a := range bound {
		if a.Key == "component" {
			component = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return false
		}
		return true
	})

	if component != "" {
		sb.WriteString(strings.ToLower(component))
		sb.WriteString(": ")
	}
	sb.WriteString(r.Message)

	for _, a := range bound {
		if a.Key != "component" {
			sb.WriteByte(' ')
			appendAttr(&sb, a)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "component" {
			sb.WriteByte(' ')
			appendAttr(&sb, a)
		}
		return true
	})

	return sb.String()
}

func appendAttr(sb *strings.Builder, a slog.Attr) {
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\n\"") {
		fmt.Fprintf(sb, "%q", val)
	} else {
		sb.WriteString(val)
	}
}
