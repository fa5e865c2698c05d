package metrics

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordConnection(false)
	r.RecordConnection(true)
	r.RecordPrefixLookup(ResultFound)
	r.RecordPrefixLookup(ResultAmbiguous)
	r.RecordPrefixLookup(ResultAmbiguous)
	r.RecordShortWrite()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Truncations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PrefixLookups.WithLabelValues(ResultFound)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.PrefixLookups.WithLabelValues(ResultAmbiguous)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ShortWrites))

	expected := `
# HELP denatd_connections_total Total client connections served
# TYPE denatd_connections_total counter
denatd_connections_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "denatd_connections_total"))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordConnection(true)
		r.RecordPrefixLookup(ResultNone)
		r.RecordShortWrite()
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.RecordConnection(false)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- Serve(l, reg) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "denatd_connections_total 1")

	l.Close()
	assert.Error(t, <-done)
}
