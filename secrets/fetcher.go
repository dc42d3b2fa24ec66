package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// Fetcher retrieves the derived key and reduces it to its fingerprint.
// The raw key never leaves Fingerprint.
type Fetcher struct {
	factory interfaces.SecretSourceFactory
	log     *slog.Logger
}

// NewFetcher creates a fetcher resolving locations through factory.
func NewFetcher(factory interfaces.SecretSourceFactory, log *slog.Logger) *Fetcher {
	return &Fetcher{
		factory: factory,
		log:     log,
	}
}

// Fingerprint performs a single retrieval from uri and returns the lowercase hex
// SHA-256 digest of the body. All failures wrap interfaces.ErrFetch.
func (f *Fetcher) Fingerprint(ctx context.Context, uri string) (string, error) {
	start := time.Now()

	source, err := f.factory.SourceFor(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", interfaces.ErrFetch, err)
	}

	data, err := source.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w from %s: %w", interfaces.ErrFetch, source.Name(), err)
	}

	fingerprint := interfaces.Fingerprint(data)
	f.log.Debug("Fingerprinted derived key",
		slog.String("source", source.Name()),
		slog.Duration("duration", time.Since(start)))

	return fingerprint, nil
}
