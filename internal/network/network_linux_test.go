//go:build linux

package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestFamilyConstantsMatchKernel(t *testing.T) {
	assert.Equal(t, unix.AF_INET, FamilyInet)
	assert.Equal(t, unix.AF_INET6, FamilyInet6)
	assert.Equal(t, unix.AF_PACKET, FamilyPacket)
}

func TestRealNetlinkerImplementsNetlinker(t *testing.T) {
	var _ Netlinker = &RealNetlinker{}
}
