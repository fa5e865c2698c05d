// Package cmd implements the denatd command line: option parsing, logger
// selection and wiring of the serving components.
package cmd

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"grimm.is/denatd/internal/brand"
	"grimm.is/denatd/internal/config"
	"grimm.is/denatd/internal/logging"
)

// Run runs the daemon with the given arguments and returns the process exit
// status. It only returns once serving has failed.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := ParseOptions(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", brand.BinaryName, err)
		PrintUsage(stderr)
		return 1
	}
	if opts.Help {
		PrintUsage(stdout)
		return 0
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", brand.BinaryName, err)
		return 1
	}

	logger, err := NewLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", brand.BinaryName, err)
		return 1
	}
	logging.SetDefault(logger)
	logConfig(logger, cfg)

	d, err := NewDaemon(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer d.Close()

	if err := d.Serve(); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

// LoadConfig loads the configuration file named by the options, or the
// default file if it exists, applies the options over it and validates the
// result.
func LoadConfig(opts *Options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFile(opts.ConfigFile)
	} else {
		cfg, err = config.LoadOptional(brand.DefaultConfigFile())
	}
	if err != nil {
		return nil, err
	}

	opts.Apply(cfg)

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", errs)
	}
	return cfg, nil
}

// NewLogger returns the stderr logger in debug mode and a syslog logger
// otherwise. Debug messages are only enabled in verbose mode.
func NewLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	level := logging.LevelInfo
	if cfg.Verbose {
		level = logging.LevelDebug
	}

	if cfg.Debug {
		return logging.New(logging.Config{Level: level, Output: stderr}), nil
	}

	return logging.NewSyslog(level, syslogConfig(cfg.Syslog))
}

func syslogConfig(remote *config.SyslogConfig) logging.SyslogConfig {
	sc := logging.DefaultSyslogConfig()
	if remote == nil {
		return sc
	}

	port := remote.Port
	if port == 0 {
		port = 514
	}
	sc.Network = remote.Protocol
	if sc.Network == "" {
		sc.Network = "udp"
	}
	sc.Address = net.JoinHostPort(remote.Host, strconv.Itoa(port))
	if remote.Tag != "" {
		sc.Tag = remote.Tag
	}
	if remote.Facility != 0 {
		sc.Facility = remote.Facility
	}
	return sc
}

func logConfig(logger *logging.Logger, cfg *config.Config) {
	if !logger.DebugEnabled() {
		return
	}
	addr, _ := cfg.ListenAddrPort()
	logger.Debug("options",
		"version", brand.Version,
		"debug", cfg.Debug,
		"verbose", cfg.Verbose,
		"family", cfg.Family,
		"listen", addr.Addr().String(),
		"port", cfg.Port,
		"protocol", cfg.Protocol,
		"prefix_lengths", fmt.Sprint(cfg.PrefixLengths),
		"prefix_source", cfg.PrefixSource,
		"buffer_size", cfg.BufferSize,
	)
}
