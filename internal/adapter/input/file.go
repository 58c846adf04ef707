package input

import (
	"context"
	"os"
	"time"

	"github.com/jmylchreest/dnsconfbridge/internal/config"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

// FileSource reads a snapshot file; the format follows the extension.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source identifier.
func (s *FileSource) Name() string {
	return "file"
}

// Path returns the snapshot file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and decodes the file.
func (s *FileSource) Load(ctx context.Context) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := config.LoadSnapshot(s.path)
	if err != nil {
		return nil, &SourceError{
			Source:  s.path,
			Message: "failed to load snapshot",
			Err:     err,
		}
	}
	return snap, nil
}

// ModTime returns the last modification time of the file.
func (s *FileSource) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
