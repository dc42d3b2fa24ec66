// Package startup runs the ordered acquisition sequence that precedes serving:
// fetch and fingerprint the derived key, acquire the enclave key, then attest.
//
// A failed fetch degrades to interfaces.FingerprintUnavailable and a failed
// attestation leaves the default report in place. A failed enclave key
// acquisition aborts the sequence; the caller must not bind the HTTP listener.
package startup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ruteri/tee-reporteer/attestation"
	"github.com/ruteri/tee-reporteer/enclave"
	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/ruteri/tee-reporteer/metrics"
	"github.com/ruteri/tee-reporteer/state"
)

// Step names used in logs and metrics.
const (
	StepFetch   = "fetch"
	StepEnclave = "enclave"
	StepAttest  = "attest"
	StepVerify  = "verify"
)

// Fingerprinter reduces the secret at uri to its fingerprint.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, uri string) (string, error)
}

// Deps wires the collaborators of the startup sequence.
type Deps struct {
	Fetcher     Fingerprinter
	EndpointURL string

	KeyProvider interfaces.EnclaveKeyProvider
	Attestation interfaces.AttestationProvider
	Options     attestation.Options

	// Metrics is optional.
	Metrics *metrics.MetricsServer
	Log     *slog.Logger
}

// Run executes the startup sequence and returns the populated store. The only
// error it returns wraps interfaces.ErrEnclave.
func Run(ctx context.Context, deps Deps) (*state.Store, error) {
	log := deps.Log

	fingerprint := fetchFingerprint(ctx, deps)
	store := state.NewStore(fingerprint)

	key, err := enclave.Acquire(ctx, deps.KeyProvider, log)
	if err != nil {
		deps.Metrics.RecordStartupStep(StepEnclave, metrics.OutcomeFailed)
		log.Warn("Failed to acquire enclave key", "provider", deps.KeyProvider.Name(), "err", err)
		return nil, err
	}
	deps.Metrics.RecordStartupStep(StepEnclave, metrics.OutcomeOK)

	attest(ctx, deps, store, key)
	return store, nil
}

// fetchFingerprint never fails; errors are absorbed into the sentinel.
func fetchFingerprint(ctx context.Context, deps Deps) string {
	fingerprint, err := deps.Fetcher.Fingerprint(ctx, deps.EndpointURL)
	if err != nil {
		deps.Metrics.RecordStartupStep(StepFetch, metrics.OutcomeDegraded)
		deps.Metrics.SetFingerprintAvailable(false)
		deps.Log.Warn("Failed to fetch derived key", "err", err)
		return interfaces.FingerprintUnavailable
	}

	deps.Metrics.RecordStartupStep(StepFetch, metrics.OutcomeOK)
	deps.Metrics.SetFingerprintAvailable(true)
	deps.Log.Info("Derived key fingerprinted", "derivedKeyHash", fingerprint)
	return fingerprint
}

// attest runs one orchestration and reports it. It returns whether a report
// was published.
func attest(ctx context.Context, deps Deps, store *state.Store, key *interfaces.EnclaveKey) bool {
	outcome := attestation.NewOrchestrator(deps.Attestation, store, deps.Options, deps.Log).Run(ctx, key)

	if outcome.Phase != attestation.PhaseRendered {
		deps.Metrics.RecordStartupStep(StepAttest, metrics.OutcomeDegraded)
		return false
	}
	deps.Metrics.RecordStartupStep(StepAttest, metrics.OutcomeOK)

	if deps.Options.VerifyAtStart {
		if errors.Is(outcome.VerifyErr, interfaces.ErrAttestation) {
			deps.Metrics.RecordStartupStep(StepVerify, metrics.OutcomeDegraded)
		} else {
			deps.Metrics.RecordStartupStep(StepVerify, metrics.OutcomeOK)
		}
	}

	deps.Metrics.SetAttestationStatus(outcome.Status)
	return true
}
