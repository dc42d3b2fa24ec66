package enclave

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// defaultTimeout bounds a request to the key service when no client is injected.
const defaultTimeout = 30 * time.Second

// RemoteKeyProvider fetches the key from a local key service over HTTP.
// The service answers GET {Address}/derived_key with the hex-encoded key.
type RemoteKeyProvider struct {
	Address string
	Client  *http.Client
}

func (*RemoteKeyProvider) Name() string { return "remote" }

func (p *RemoteKeyProvider) DerivedKey(ctx context.Context) ([]byte, error) {
	url := fmt.Sprintf("%s/derived_key", strings.TrimSuffix(p.Address, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote key provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("remote key provider returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("reading key from response: %w", err)
	}

	key, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("remote key provider returned malformed key: %w", err)
	}
	return key, nil
}

// httpClient returns the injected client, or a pooled one bounded by defaultTimeout.
func (p *RemoteKeyProvider) httpClient() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = defaultTimeout
	return client
}
