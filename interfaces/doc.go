// Package interfaces defines the contracts shared by reporteer's components:
// the secret source and hardware provider interfaces, the values that flow
// between startup steps, and the sentinel errors that decide whether a failed
// step degrades the served state or aborts startup.
//
// # Providers
//
// SecretSource: Retrieves the derived key from one location (HTTP, file, S3, Vault).
//
// EnclaveKeyProvider: Obtains a key bound to the local hardware root of trust.
//
// AttestationProvider: Produces and verifies hardware attestation reports over a message.
//
// # Values
//
//   - Fingerprint: lowercase hex SHA-256 of the derived key, or FingerprintUnavailable
//   - EnclaveKey: exactly EnclaveKeySize bytes, wiped after use, never served
//   - AttestationReport: provider evidence plus an ordered field dump
package interfaces
