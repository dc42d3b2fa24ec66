package secrets

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/ruteri/tee-reporteer/interfaces"
)

// DefaultTimeout bounds a single retrieval. No retries are attempted.
const DefaultTimeout = 30 * time.Second

// SourceFactory creates secret sources from URI strings.
type SourceFactory struct {
	log    *slog.Logger
	client *http.Client
}

// NewSourceFactory creates a factory whose network sources share one pooled
// HTTP client with DefaultTimeout applied.
func NewSourceFactory(logger *slog.Logger) *SourceFactory {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = DefaultTimeout
	return &SourceFactory{
		log:    logger,
		client: client,
	}
}

// WithHTTPClient replaces the client used by http(s):// and vault:// sources.
func (sf *SourceFactory) WithHTTPClient(client *http.Client) *SourceFactory {
	sf.client = client
	return sf
}

// SourceFor creates a secret source from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - http://, https:// - single GET, response body is the secret
//   - file:// - local file, contents are the secret
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2 secret field
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *SourceFactory) SourceFor(uri string) (interfaces.SecretSource, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid secret source URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPSource(u, sf.client, sf.log), nil
	case "file":
		return sf.createFileSource(u)
	case "s3":
		return sf.createS3Source(u)
	case "vault":
		return sf.createVaultSource(u)
	default:
		return nil, fmt.Errorf("%w: %q", interfaces.ErrUnsupportedScheme, u.Scheme)
	}
}

// createFileSource creates a local file source.
// URI format: file:///absolute/path or file://./relative/path
func (sf *SourceFactory) createFileSource(u *url.URL) (interfaces.SecretSource, error) {
	sf.log.Debug("Creating file source", slog.String("uri", u.Redacted()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", u.String())
	}

	return NewFileSource(path, sf.log), nil
}

// createS3Source creates an S3 object source.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/object/key?region=us-west-2&endpoint=custom.s3.com
// Without embedded credentials the bucket is read anonymously.
func (sf *SourceFactory) createS3Source(u *url.URL) (interfaces.SecretSource, error) {
	sf.log.Debug("Creating S3 source", slog.String("uri", u.Redacted()))

	bucketName := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucketName == "" || key == "" {
		return nil, fmt.Errorf("invalid S3 URI format, expected s3://bucket/key")
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Source(bucketName, key, region, endpoint, accessKey, secretKey, sf.log)
}

// createVaultSource creates a Vault KV v2 source.
// URI format: vault://host:port/mount/path/to/secret?field=derived_key&scheme=https
// The token is taken from VAULT_TOKEN.
func (sf *SourceFactory) createVaultSource(u *url.URL) (interfaces.SecretSource, error) {
	sf.log.Debug("Creating Vault source", slog.String("uri", u.Redacted()))

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if u.Host == "" || len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid Vault URI format, expected vault://host:port/mount/path")
	}

	query := u.Query()
	scheme := query.Get("scheme")
	if scheme == "" {
		scheme = "https"
	}
	field := query.Get("field")
	if field == "" {
		field = DefaultVaultField
	}

	address := fmt.Sprintf("%s://%s", scheme, u.Host)
	return NewVaultSource(address, parts[0], parts[1], field, sf.client, sf.log)
}
