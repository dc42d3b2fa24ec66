// Package main (cmd/reporteer) runs the reporteer service.
//
// On startup it fingerprints the derived key, acquires the enclave key and
// produces an attestation report, then serves all of it over HTTP until
// SIGINT or SIGTERM. Failing to fetch the derived key or to attest degrades
// the served values; failing to acquire the enclave key exits with status 2
// before the listener is bound.
//
// Every setting has a flag and an environment variable. A .env file in the
// working directory is loaded first, without overriding the environment.
//
// Example usage on a development host without a TEE:
//
//	reporteer \
//	  --endpoint-url file:///run/secrets/derived_key \
//	  --enclave-key-provider seed \
//	  --enclave-key-seed 000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f \
//	  --attestation-provider dummy \
//	  --verify-at-start true
package main
