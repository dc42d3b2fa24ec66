package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintUnavailable is the fingerprint recorded when the derived key could
// not be fetched. It is a data value served to clients, not an error signal.
const FingerprintUnavailable = "ERROR_FETCHING_KEY"

// Fingerprint returns the lowercase hex SHA-256 digest of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SecretSource retrieves the raw derived key from a single location.
type SecretSource interface {
	// Fetch performs one retrieval and returns the full secret body.
	Fetch(ctx context.Context) ([]byte, error)

	// Name returns identifier for logging. It never contains credentials.
	Name() string
}

// SecretSourceFactory creates secret sources from location URIs.
type SecretSourceFactory interface {
	// SourceFor creates a source from URI.
	// Supports http://, https://, file://, s3://, vault://
	SourceFor(uri string) (SecretSource, error)
}
