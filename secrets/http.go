package secrets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxSecretSize caps how much of a response body is read.
const maxSecretSize = 1024 * 1024

// HTTPSource retrieves the secret with a single GET request.
type HTTPSource struct {
	url    *url.URL
	client *http.Client
	log    *slog.Logger
}

// NewHTTPSource creates a source for an http:// or https:// location.
func NewHTTPSource(u *url.URL, client *http.Client, log *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url:    u,
		client: client,
		log:    log,
	}
}

// Fetch issues one GET and returns the full response body.
// Non-2xx responses are failures: an error page is not a key.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request derived key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("derived key endpoint returned status %d", resp.StatusCode)
	}

	body, err := readSecret(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read derived key response: %w", err)
	}

	s.log.Debug("Fetched derived key over HTTP",
		slog.String("url", s.url.Redacted()),
		slog.Int("size", len(body)),
		slog.Duration("duration", time.Since(start)))

	return body, nil
}

// Name returns the redacted URL.
func (s *HTTPSource) Name() string {
	return s.url.Redacted()
}

// readSecret reads all of r. Bodies over maxSecretSize are rejected rather
// than truncated, so a fingerprint always covers the whole secret.
func readSecret(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSecretSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSecretSize {
		return nil, fmt.Errorf("secret exceeds %d bytes", maxSecretSize)
	}
	return data, nil
}
