package cmd

import (
	"fmt"
	"io"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"grimm.is/denatd/internal/clock"
	"grimm.is/denatd/internal/config"
	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/network"
	"grimm.is/denatd/internal/route"
	"grimm.is/denatd/internal/server"
)

// Daemon is the wired process state: the listening socket, the prefix source
// with its kernel channel, and the optional metrics endpoint.
type Daemon struct {
	server   *server.Server
	logger   *logging.Logger
	registry *prometheus.Registry

	listener        net.Listener
	metricsListener net.Listener
	closers         []io.Closer
}

// NewDaemon opens every resource cfg asks for. Any failure is returned after
// releasing what was already opened.
func NewDaemon(cfg *config.Config, logger *logging.Logger) (*Daemon, error) {
	d := &Daemon{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg := metrics.New(d.registry)

	prefix, err := d.prefixSource(cfg, reg)
	if err != nil {
		d.Close()
		return nil, err
	}

	timeout, err := cfg.WriteTimeoutDuration()
	if err != nil {
		d.Close()
		return nil, err
	}

	addr, err := cfg.ListenAddrPort()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.listener, err = server.Listen(addr, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.closers = append(d.closers, d.listener)

	if cfg.MetricsListen != "" {
		d.metricsListener, err = net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to listen for metrics: %w", err)
		}
		d.closers = append(d.closers, d.metricsListener)
	}

	d.server = server.New(server.Config{
		Listener:     d.listener,
		Addresses:    network.NewEnumerator(&network.RealNetlinker{}, logger),
		Prefix:       prefix,
		BufferSize:   cfg.BufferSize,
		WriteTimeout: timeout,
		Logger:       logger,
		Metrics:      reg,
	})
	return d, nil
}

func (d *Daemon) prefixSource(cfg *config.Config, reg *metrics.Registry) (server.Collector, error) {
	switch cfg.PrefixSource {
	case config.PrefixSourceFile:
		src := route.NewFileSource(cfg.PrefixFile, d.logger)
		src.SetMetrics(reg)
		return src, nil

	case config.PrefixSourceNetlink:
		conn, err := route.Dial()
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, conn)

		c := route.NewCollector(conn, cfg.Policy(), clock.RealClock{}, d.logger)
		c.SetMetrics(reg)
		return c, nil

	default:
		return nil, fmt.Errorf("unknown prefix source %q", cfg.PrefixSource)
	}
}

// Addr returns the address clients connect to.
func (d *Daemon) Addr() net.Addr {
	return d.listener.Addr()
}

// Serve answers clients until a fatal error. The metrics endpoint, if any,
// runs in its own goroutine and never stops the daemon.
func (d *Daemon) Serve() error {
	if d.metricsListener != nil {
		go func() {
			if err := metrics.Serve(d.metricsListener, d.registry); err != nil {
				d.logger.Warn("metrics endpoint stopped", "error", err)
			}
		}()
		d.logger.Info("serving metrics", "addr", d.metricsListener.Addr().String())
	}
	return d.server.Serve()
}

// ServeOne answers a single client.
func (d *Daemon) ServeOne() error {
	return d.server.ServeOne()
}

// Close releases every resource in reverse order of opening.
func (d *Daemon) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i].Close()
	}
	d.closers = nil
}
