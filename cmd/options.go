package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"grimm.is/denatd/internal/brand"
	"grimm.is/denatd/internal/config"
	"grimm.is/denatd/internal/route"
)

// Options holds the command-line options. Unset options leave the
// configuration alone.
type Options struct {
	IPv4       bool
	Listen     netip.Addr
	Port       int
	PortSet    bool
	Debug      bool
	Verbose    bool
	Protocol   int
	ProtoSet   bool
	ConfigFile string
	Help       bool
}

var errInvalidArgument = errors.New("invalid argument")

// onceValue is a pflag.Value that may be given only once. The first problem
// with any option is kept in *failure so it can be reported verbatim; pflag
// would otherwise wrap it in its own wording.
type onceValue struct {
	short, long string
	seen        bool
	failure     *error
	set         func(string) error
	str         func() string
	typ         string
}

func (v *onceValue) Set(arg string) error {
	var err error
	switch {
	case v.seen:
		err = fmt.Errorf("multiple -%s or --%s options", v.short, v.long)
	default:
		v.seen = true
		if v.set(arg) != nil {
			err = fmt.Errorf("invalid argument for -%s or --%s option: '%s'", v.short, v.long, arg)
		}
	}
	if err != nil && *v.failure == nil {
		*v.failure = err
	}
	return err
}

func (v *onceValue) String() string { return v.str() }
func (v *onceValue) Type() string   { return v.typ }

type optionSet struct {
	fs      *pflag.FlagSet
	opts    *Options
	failure error
}

func newOptionSet() *optionSet {
	s := &optionSet{
		fs:   pflag.NewFlagSet(brand.BinaryName, pflag.ContinueOnError),
		opts: &Options{},
	}
	s.fs.SetOutput(io.Discard)
	s.fs.SortFlags = false

	o := s.opts
	s.boolVar(&o.IPv4, "ipv4", "4", "listen on IPv4 only")
	s.boolVar(&o.Debug, "debug", "d", "log to stderr instead of syslog")
	s.boolVar(&o.Verbose, "verbose", "v", "log debug messages")
	s.boolVar(&o.Help, "help", "h", "show this help and exit")

	s.funcVar("listen", "l", "address", "local address to listen on (default ::)", func(arg string) error {
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return err
		}
		o.Listen = addr
		return nil
	})
	s.funcVar("port", "p", "port", fmt.Sprintf("TCP port to listen on (default %d)", brand.DefaultPort), func(arg string) error {
		port, err := parseNumber(arg, 0, 65535)
		if err != nil {
			return err
		}
		o.Port, o.PortSet = port, true
		return nil
	})
	s.funcVar("protocol", "P", "number", fmt.Sprintf("routing protocol of delegated prefix routes (default %d)", route.DefaultProtocol), func(arg string) error {
		proto, err := parseNumber(arg, 0, 255)
		if err != nil {
			return err
		}
		o.Protocol, o.ProtoSet = proto, true
		return nil
	})
	s.funcVar("config", "c", "file", fmt.Sprintf("configuration file (default %s)", brand.DefaultConfigFile()), func(arg string) error {
		if arg == "" {
			return errInvalidArgument
		}
		o.ConfigFile = arg
		return nil
	})

	return s
}

func (s *optionSet) boolVar(p *bool, long, short, usage string) {
	s.fs.VarP(&onceValue{
		short: short, long: long, failure: &s.failure, typ: "bool",
		set: func(arg string) error {
			b, err := strconv.ParseBool(arg)
			if err != nil {
				return err
			}
			*p = b
			return nil
		},
		str: func() string { return strconv.FormatBool(*p) },
	}, long, short, usage)
	s.fs.Lookup(long).NoOptDefVal = "true"
}

func (s *optionSet) funcVar(long, short, typ, usage string, set func(string) error) {
	var last string
	s.fs.VarP(&onceValue{
		short: short, long: long, failure: &s.failure, typ: typ,
		set: func(arg string) error {
			last = arg
			return set(arg)
		},
		str: func() string { return last },
	}, long, short, usage)
}

// ParseOptions parses args (without the program name).
func ParseOptions(args []string) (*Options, error) {
	s := newOptionSet()

	if err := s.fs.Parse(args); err != nil {
		if s.failure != nil {
			return nil, s.failure
		}
		return nil, err
	}
	if s.fs.NArg() > 0 {
		return nil, fmt.Errorf("invalid option: '%s'", s.fs.Arg(0))
	}

	o := s.opts
	if o.IPv4 && o.Listen.IsValid() && !o.Listen.Is4() {
		return nil, fmt.Errorf("IPv6 listen address (%s) not compatible with IPv4 option (-4|--ipv4)", o.Listen)
	}
	return o, nil
}

// parseNumber parses an integer the way strtol does with base 0: a 0x prefix
// selects hex and a leading 0 selects octal.
func parseNumber(s string, lo, hi int) (int, error) {
	digits := strings.TrimLeft(s, "+-")
	if digits == "" || strings.Contains(s, "_") {
		return 0, errInvalidArgument
	}
	if len(digits) > 1 && digits[0] == '0' && strings.ContainsAny(digits[1:2], "bBoO") {
		return 0, errInvalidArgument
	}

	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil || n < int64(lo) || n > int64(hi) {
		return 0, errInvalidArgument
	}
	return int(n), nil
}

// Apply overlays the options that were given onto cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.IPv4 {
		cfg.Family = config.FamilyIPv4
	}
	if o.Listen.IsValid() {
		cfg.Listen = o.Listen.String()
		if o.Listen.Is4() {
			cfg.Family = config.FamilyIPv4
		}
	}
	if o.PortSet {
		cfg.Port = o.Port
	}
	if o.ProtoSet {
		cfg.Protocol = o.Protocol
	}
	if o.Debug {
		cfg.Debug = true
	}
	if o.Verbose {
		cfg.Verbose = true
	}
}

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [-4|--ipv4] [-d|--debug] [-v|--verbose] [-h|--help]\n"+
		"\t[-l|--listen address] [-p|--port port] [-P|--protocol number]\n"+
		"\t[-c|--config file]\n\n", brand.BinaryName)
	fmt.Fprint(w, newOptionSet().fs.FlagUsages())
}
