// Package state holds the artifacts served by reporteer.
//
// A Store has a single writer (the startup sequence, and the refresher when
// enabled) and any number of concurrent readers (HTTP handlers). Readers take
// a Snapshot, a value copy made under a read lock, so they never block each
// other and never observe a partially applied Update.
package state

import (
	"sync"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// DefaultReportText is served until an attestation report has been rendered.
const DefaultReportText = "No attestation report available."

// Report statuses carried by ReportEnvelope.Status.
const (
	StatusVerified  = "verified"
	StatusGenerated = "generated"
)

// ReportEnvelope is the machine-readable view of an attestation report.
type ReportEnvelope struct {
	ReportType string `json:"report_type"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	Details    string `json:"details"`

	// VerificationError is set when verification was attempted and failed.
	VerificationError string `json:"verification_error,omitempty"`
}

// OptionalReport either holds a ReportEnvelope or is empty. The zero value is empty.
type OptionalReport struct {
	envelope ReportEnvelope
	present  bool
}

// Some wraps envelope.
func Some(envelope ReportEnvelope) OptionalReport {
	return OptionalReport{envelope: envelope, present: true}
}

// None returns the empty OptionalReport.
func None() OptionalReport {
	return OptionalReport{}
}

// Get returns the envelope and whether one is present.
func (o OptionalReport) Get() (ReportEnvelope, bool) {
	return o.envelope, o.present
}

// State is the full set of served artifacts.
type State struct {
	Fingerprint string
	ReportText  string
	Report      OptionalReport
}

// Store guards a State with a readers-writer lock.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store holding fingerprint and the default report text.
func NewStore(fingerprint string) *Store {
	if fingerprint == "" {
		fingerprint = interfaces.FingerprintUnavailable
	}
	return &Store{
		state: State{
			Fingerprint: fingerprint,
			ReportText:  DefaultReportText,
			Report:      None(),
		},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies mutate under the write lock. All fields changed by one call
// become visible to readers together.
func (s *Store) Update(mutate func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.state)
}
