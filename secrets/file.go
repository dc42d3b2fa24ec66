package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// FileSource reads the secret from the local file system.
type FileSource struct {
	path string
	log  *slog.Logger
}

// NewFileSource creates a source for a local file.
func NewFileSource(path string, log *slog.Logger) *FileSource {
	return &FileSource{
		path: path,
		log:  log,
	}
}

// Fetch returns the file contents. Returns ErrSecretNotFound if the file doesn't exist.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.log.Debug("Fetched derived key from file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))

	return data, nil
}

// Name returns the file URI.
func (s *FileSource) Name() string {
	return fmt.Sprintf("file://%s", s.path)
}
