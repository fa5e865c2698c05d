package route

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"grimm.is/denatd/internal/logging"
	"grimm.is/denatd/internal/metrics"
	"grimm.is/denatd/internal/response"
)

// maxPrefixFileSize bounds how much of the prefix file is read.
const maxPrefixFileSize = 100

// FileSource reports the prefix a DHCPv6 client hook wrote to a file. The file
// holds a single newline-terminated line such as "2001:db8:1234:5600::/56".
type FileSource struct {
	path    string
	logger  *logging.Logger
	metrics *metrics.Registry
}

// NewFileSource creates a source reading path on every Collect.
func NewFileSource(path string, logger *logging.Logger) *FileSource {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.WithComponent("prefix-file"),
	}
}

// SetMetrics records lookup outcomes in m.
func (s *FileSource) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// Path returns the file the source reads.
func (s *FileSource) Path() string {
	return s.path
}

// Collect appends "__PREFIX__ <content>" for the file's line.
//
// A missing file is normal (no prefix delegated yet) and logged at info. A
// file that does not end in a newline is being rewritten or is corrupt; it is
// skipped with a warning. Any other I/O error is returned.
func (s *FileSource) Collect(buf *response.Buffer) error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("prefix file missing", "path", s.path)
			s.metrics.RecordPrefixLookup(metrics.ResultMissing)
			return nil
		}
		return fmt.Errorf("failed to open prefix file: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxPrefixFileSize))
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read prefix file %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close prefix file %s: %w", s.path, err)
	}

	if len(data) == 0 {
		s.metrics.RecordPrefixLookup(metrics.ResultNone)
		return nil
	}
	if data[len(data)-1] != '\n' {
		s.logger.Warn("prefix file not newline terminated", "path", s.path)
		s.metrics.RecordPrefixLookup(metrics.ResultNone)
		return nil
	}
	s.metrics.RecordPrefixLookup(metrics.ResultFound)

	if err := prefixLine(buf, string(data[:len(data)-1])); err != nil {
		if errors.Is(err, response.ErrTruncated) {
			s.logger.Warn("output truncated")
			return nil
		}
		return err
	}
	return nil
}
