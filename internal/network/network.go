package network

import (
	"github.com/vishvananda/netlink"
)

// Address families carried by InterfaceAddress. The values are the Linux
// AF_* constants.
const (
	FamilyInet   = 2
	FamilyInet6  = 10
	FamilyPacket = 17
)

// InterfaceAddress is one address entry of one interface.
type InterfaceAddress struct {
	Interface string
	Family    int
	// Addr is the raw address: a hardware address for FamilyPacket, an IP
	// otherwise. Nil means the entry carries no address at all.
	Addr []byte
}

// Netlinker is an interface that abstracts the netlink calls the enumerator
// needs.
type Netlinker interface {
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}
