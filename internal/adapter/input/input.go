// Package input provides snapshot sources for the CLI.
package input

import (
	"context"

	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// Source produces configuration snapshots.
type Source interface {
	// Name returns the source identifier (e.g., "file", "stdin").
	Name() string

	// Load reads the current snapshot.
	Load(ctx context.Context) (*model.Snapshot, error)
}

// StdinName is the source argument selecting standard input.
const StdinName = "-"

// NewSource creates a Source for the given argument: "-" reads standard
// input, anything else is a snapshot file path.
func NewSource(arg string) (Source, error) {
	switch arg {
	case "":
		return nil, &SourceError{
			Source:  arg,
			Message: "no snapshot source given",
		}
	case StdinName:
		return NewStdinSource(), nil
	default:
		return NewFileSource(arg), nil
	}
}

// SourceError represents a source-related error.
type SourceError struct {
	Source  string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
