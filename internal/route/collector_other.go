//go:build !linux

package route

import (
	"errors"

	"github.com/mdlayher/netlink"

	"grimm.is/denatd/internal/clock"
	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/response"
)

var errUnsupported = errors.New("route netlink lookups are only supported on linux")

// Dial is not supported on this platform.
func Dial() (*netlink.Conn, error) {
	return nil, errUnsupported
}

// Collector is a stub on this platform.
type Collector struct{}

func NewCollector(*netlink.Conn, Policy, clock.Clock, *logging.Logger) *Collector {
	return &Collector{}
}

func (c *Collector) SetMetrics(*metrics.Registry) {}

func (c *Collector) Lookup() (Result, error) {
	return Result{}, errUnsupported
}

func (c *Collector) Collect(*response.Buffer) error {
	return errUnsupported
}
