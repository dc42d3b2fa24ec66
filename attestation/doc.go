// Package attestation produces, verifies and renders hardware attestation
// reports, and drives the one-shot orchestration that publishes a report into
// the state store.
package attestation
