// Package enclave obtains the hardware-bound enclave key.
//
// The key is a precondition for meaningful attestation, so unlike the derived
// key fingerprint there is no degraded mode: Acquire fails with
// interfaces.ErrEnclave whenever the provider errors or returns anything other
// than exactly 32 bytes, and the caller stops before serving traffic.
//
// Providers:
//
//   - sev-snp: key derived by the AMD secure processor via /dev/sev-guest
//   - remote: hex key served by a local key service
//   - seed: HKDF-SHA256 over an operator seed, for hosts without a TEE
package enclave
