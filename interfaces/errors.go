package interfaces

import "errors"

var (
	// ErrConfig is returned when the environment carries an invalid endpoint URL
	// or server port. Callers recover by falling back to the full default config.
	ErrConfig = errors.New("configuration error")

	// ErrFetch is returned when the derived key cannot be retrieved from its source.
	// The startup sequence absorbs it into FingerprintUnavailable.
	ErrFetch = errors.New("failed to fetch derived key")

	// ErrEnclave is returned when the enclave key provider fails or returns a key
	// of the wrong shape. It is fatal: the HTTP listener must never be bound.
	ErrEnclave = errors.New("enclave key unavailable")

	// ErrAttestation is returned when the attestation provider fails to attest or
	// to verify. The report fields are left at their defaults.
	ErrAttestation = errors.New("attestation failed")

	// ErrUnsupportedScheme is returned when a secret source URI uses a scheme
	// no source is registered for.
	ErrUnsupportedScheme = errors.New("unsupported secret source scheme")

	// ErrSecretNotFound is returned when the secret source is reachable but holds
	// no value at the requested location.
	ErrSecretNotFound = errors.New("secret not found")
)
