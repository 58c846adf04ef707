package input

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmylchreest/dnsconfbridge/internal/config"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// maxStdinSize bounds how much of standard input is read.
const maxStdinSize = 10 * 1024 * 1024

// StdinSource reads a snapshot from standard input.
type StdinSource struct {
	reader io.Reader
	format config.SnapshotFormat
}

// NewStdinSource creates a new StdinSource reading YAML from os.Stdin.
func NewStdinSource() *StdinSource {
	return &StdinSource{reader: os.Stdin, format: config.FormatYAML}
}

// NewStdinSourceWithReader creates a new StdinSource with a custom reader
// and format. An empty format means YAML, which also accepts JSON.
func NewStdinSourceWithReader(r io.Reader, format config.SnapshotFormat) *StdinSource {
	if format == "" {
		format = config.FormatYAML
	}
	return &StdinSource{reader: r, format: format}
}

// Name returns the source identifier.
func (s *StdinSource) Name() string {
	return "stdin"
}

// Load reads standard input to the end and decodes it. Empty input is an
// empty snapshot.
func (s *StdinSource) Load(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(s.reader, maxStdinSize+1))
	if err != nil {
		return nil, &SourceError{
			Source:  "stdin",
			Message: "failed to read stdin",
			Err:     err,
		}
	}
	if len(data) > maxStdinSize {
		return nil, &SourceError{
			Source:  "stdin",
			Message: fmt.Sprintf("snapshot too large (limit %d bytes)", maxStdinSize),
		}
	}
	if len(data) == 0 {
		return &model.Snapshot{}, nil
	}

	snap, err := config.ParseSnapshot(data, s.format)
	if err != nil {
		return nil, &SourceError{
			Source:  "stdin",
			Message: "failed to parse snapshot",
			Err:     err,
		}
	}
	return snap, nil
}
