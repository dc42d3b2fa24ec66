package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/tee-reporteer/interfaces"
)

// DefaultVaultField is the KV field read when the URI names none.
const DefaultVaultField = "derived_key"

// VaultSource reads the secret from a HashiCorp Vault KV v2 secret.
// The client token is taken from the environment (VAULT_TOKEN).
type VaultSource struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	field       string
	log         *slog.Logger
	locationURI string
}

// NewVaultSource creates a new Vault KV v2 source.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "reporteer")
//   - field: Key within the secret data holding the derived key
//   - httpClient: Client used for requests, nil keeps Vault's default
//   - log: Structured logger for operational insights
func NewVaultSource(address, mountPath, dataPath, field string, httpClient *http.Client, log *slog.Logger) (*VaultSource, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read Vault environment: %w", config.Error)
	}
	config.Address = address
	if httpClient != nil {
		config.HttpClient = httpClient
	}
	config.MaxRetries = 0

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	host := address
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		host = u.Host
	}

	return &VaultSource{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		field:       field,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s?field=%s", host, mountPath, dataPath, field),
	}, nil
}

// Fetch reads the configured field of the secret.
// It uses the KV v2 API which requires a specific path structure.
func (s *VaultSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	// Vault KV v2 path structure
	path := fmt.Sprintf("%s/data/%s", s.mountPath, s.dataPath)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSecretNotFound, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	content, ok := data[s.field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q not present at %s", interfaces.ErrSecretNotFound, s.field, path)
	}

	contentStr, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("invalid content format in Vault data: field %q is %T", s.field, content)
	}

	s.log.Debug("Fetched derived key from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return []byte(contentStr), nil
}

// Name returns the location URI.
func (s *VaultSource) Name() string {
	return s.locationURI
}
