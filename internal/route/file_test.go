package route

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/response"
)

func newTestFileSource(t *testing.T, content *string, logs *bytes.Buffer) *FileSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dhclient6-prefix")
	if content != nil {
		require.NoError(t, os.WriteFile(path, []byte(*content), 0o644))
	}
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: logs})
	return NewFileSource(path, logger)
}

func ptr(s string) *string { return &s }

func TestFileSource_Collect(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		want     string
		wantLog  string
		wantStat string
	}{
		{
			name:     "prefix line",
			content:  ptr("2001:db8:1234:5600::/56\n"),
			want:     "__PREFIX__ 2001:db8:1234:5600::/56\n",
			wantStat: metrics.ResultFound,
		},
		{
			name:     "missing file",
			content:  nil,
			wantLog:  "[info] prefix-file: prefix file missing",
			wantStat: metrics.ResultMissing,
		},
		{
			name:     "not newline terminated",
			content:  ptr("2001:db8:1234:5600::/56"),
			wantLog:  "[warn] prefix-file: prefix file not newline terminated",
			wantStat: metrics.ResultNone,
		},
		{
			name:     "empty file",
			content:  ptr(""),
			wantStat: metrics.ResultNone,
		},
		{
			name:     "oversized file",
			content:  ptr(strings.Repeat("f", 200) + "\n"),
			wantLog:  "not newline terminated",
			wantStat: metrics.ResultNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			s := newTestFileSource(t, tt.content, &logs)
			reg := metrics.New(prometheus.NewRegistry())
			s.SetMetrics(reg)

			buf := response.New(response.DefaultCapacity)
			require.NoError(t, s.Collect(buf))

			assert.Equal(t, tt.want, string(buf.Response()))
			if tt.wantLog != "" {
				assert.Contains(t, logs.String(), tt.wantLog)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(reg.PrefixLookups.WithLabelValues(tt.wantStat)))
		})
	}
}

func TestFileSource_UnreadableIsFatal(t *testing.T) {
	var logs bytes.Buffer
	// A directory opens fine but cannot be read.
	s := NewFileSource(t.TempDir(), logging.New(logging.Config{Output: &logs}))

	err := s.Collect(response.New(response.DefaultCapacity))
	assert.Error(t, err)
}

func TestFileSource_Truncation(t *testing.T) {
	var logs bytes.Buffer
	s := newTestFileSource(t, ptr("2001:db8:1234:5600::/56\n"), &logs)

	buf := response.New(12)
	require.NoError(t, s.Collect(buf))
	assert.True(t, buf.Truncated())
	assert.Contains(t, logs.String(), "output truncated")
}

func TestFileSource_Implements(t *testing.T) {
	var _ PrefixSource = &FileSource{}
	s := NewFileSource("/run/dhclient6-prefix", nil)
	assert.Equal(t, "/run/dhclient6-prefix", s.Path())
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, uint8(255), p.Protocol)
	assert.Equal(t, []int{48, 56, 60}, p.PrefixLengths)
	assert.True(t, p.Allows(56))
	assert.False(t, p.Allows(64))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, metrics.ResultFound, Found.String())
	assert.Equal(t, metrics.ResultNone, None.String())
	assert.Equal(t, metrics.ResultAmbiguous, Ambiguous.String())
}
