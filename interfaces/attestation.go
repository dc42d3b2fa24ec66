package interfaces

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
)

// EnclaveKeySize is the only accepted length of a hardware-derived enclave key.
const EnclaveKeySize = 32

// EnclaveKey is key material bound to the local hardware root of trust.
type EnclaveKey [EnclaveKeySize]byte

// ID returns a short non-reversible identifier of the key suitable for logs.
func (k *EnclaveKey) ID() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:4])
}

// Wipe zeroes the key material.
func (k *EnclaveKey) Wipe() {
	for i := range k {
		k[i] = 0
	}
}

// EnclaveKeyProvider obtains key material from a hardware capability.
type EnclaveKeyProvider interface {
	// DerivedKey returns the raw key bytes. Length validation is the caller's job.
	DerivedKey(ctx context.Context) ([]byte, error)

	// Name returns identifier for logging.
	Name() string
}

// ReportField is a single named value of an attestation report dump.
type ReportField struct {
	Name  string
	Value string
}

// AttestationReport is evidence produced by an attestation provider over a message.
// It is opaque to everything but the provider that produced it: Evidence holds the
// provider-native value, Fields an ordered dump of every field for display.
type AttestationReport struct {
	// Type is the human-readable report type, e.g. "AMD SEV-SNP Attestation".
	Type string

	// Message is the application data the report was produced over.
	Message []byte

	// ReportData is the 64-byte value bound into the hardware report.
	ReportData [64]byte

	// Fields lists every report field in a stable order.
	Fields []ReportField

	// Evidence is the provider-native report value used by Verify.
	Evidence any
}

// VerificationResult describes a successful report verification.
type VerificationResult struct {
	// Measurements maps register names to hex-encoded values.
	Measurements map[string]string

	// Detail is a short description of what was checked.
	Detail string
}

// AttestationProvider produces and verifies hardware attestation reports.
type AttestationProvider interface {
	// Attest produces a report over message.
	Attest(ctx context.Context, message []byte) (*AttestationReport, error)

	// Verify checks report against the same message it was produced over.
	Verify(ctx context.Context, report *AttestationReport, message []byte) (*VerificationResult, error)

	// Name returns identifier for logging.
	Name() string
}

// ReportDataFor binds message into the 64-byte report data field.
func ReportDataFor(message []byte) [64]byte {
	return sha512.Sum512(message)
}
