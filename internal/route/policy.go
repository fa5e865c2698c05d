package route

import "slices"

// DefaultProtocol is the routing protocol identifier the DHCPv6 client tags
// delegated prefix routes with.
const DefaultProtocol = 255

// Policy selects which kernel routes count as a delegated prefix.
type Policy struct {
	// Protocol is the rtm_protocol value a route must carry.
	Protocol uint8
	// PrefixLengths are the accepted destination prefix lengths.
	PrefixLengths []int
}

// DefaultPolicy returns protocol 255 with prefix lengths 48, 56 and 60.
func DefaultPolicy() Policy {
	return Policy{
		Protocol:      DefaultProtocol,
		PrefixLengths: []int{48, 56, 60},
	}
}

// Allows reports whether length is an accepted prefix length.
func (p Policy) Allows(length int) bool {
	return slices.Contains(p.PrefixLengths, length)
}
