// Package route finds the IPv6 prefix delegated to this host and reports it as
// a "__PREFIX__" response line.
//
// Two sources exist. Collector queries the kernel routing table over a
// long-lived rtnetlink channel and accepts exactly one route installed with
// the configured protocol identifier. FileSource reads the prefix a DHCPv6
// client hook wrote to a file.
package route

import (
	"net/netip"

	"grimm.is/denatd/internal/response"
)

// PrefixSource appends the delegated prefix line, if any, to a response.
type PrefixSource interface {
	Collect(buf *response.Buffer) error
}

// Kind classifies the outcome of a prefix lookup.
type Kind int

const (
	// None means no route qualified.
	None Kind = iota
	// Found means exactly one route qualified.
	Found
	// Ambiguous means more than one route qualified. Nothing is reported.
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Result is the outcome of a prefix lookup. Prefix is only valid when Kind is
// Found.
type Result struct {
	Kind   Kind
	Prefix netip.Prefix
}

// RouteRecord holds the fields of one route entry the lookup looks at.
type RouteRecord struct {
	Protocol  uint8
	PrefixLen int
	// Dst is the zero Addr when the route carries no destination attribute.
	Dst netip.Addr
}

// HasDst reports whether the route carried a destination attribute.
func (r RouteRecord) HasDst() bool {
	return r.Dst.IsValid()
}

// Prefix returns the destination and prefix length as a prefix.
func (r RouteRecord) Prefix() netip.Prefix {
	return netip.PrefixFrom(r.Dst, r.PrefixLen)
}

func prefixLine(buf *response.Buffer, text string) error {
	return buf.Appendf("__PREFIX__ %s\n", text)
}
