package startup

import (
	"context"
	"time"

	"github.com/ruteri/tee-reporteer/enclave"
	"github.com/ruteri/tee-reporteer/metrics"
	"github.com/ruteri/tee-reporteer/state"
)

// Refresher periodically repeats the startup sequence against a live store.
// Every step that fails keeps the previously published values; nothing it does
// is fatal.
type Refresher struct {
	deps     Deps
	store    *state.Store
	interval time.Duration
}

func NewRefresher(store *state.Store, deps Deps, interval time.Duration) *Refresher {
	return &Refresher{
		deps:     deps,
		store:    store,
		interval: interval,
	}
}

// Run refreshes on every tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.deps.Log.Info("Starting refresher", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.deps.Log.Info("Refresher stopped")
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce performs a single refresh.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	deps := r.deps
	log := deps.Log.With("refresh", true)
	deps.Log = log

	fingerprint, err := deps.Fetcher.Fingerprint(ctx, deps.EndpointURL)
	if err != nil {
		deps.Metrics.RecordStartupStep(StepFetch, metrics.OutcomeDegraded)
		log.Warn("Failed to refresh derived key, keeping previous fingerprint", "err", err)
	} else {
		deps.Metrics.RecordStartupStep(StepFetch, metrics.OutcomeOK)
		deps.Metrics.SetFingerprintAvailable(true)
		r.store.Update(func(s *state.State) { s.Fingerprint = fingerprint })
	}

	key, err := enclave.Acquire(ctx, deps.KeyProvider, log)
	if err != nil {
		deps.Metrics.RecordStartupStep(StepEnclave, metrics.OutcomeFailed)
		log.Warn("Failed to acquire enclave key, keeping previous report", "err", err)
		return
	}
	deps.Metrics.RecordStartupStep(StepEnclave, metrics.OutcomeOK)

	if !attest(ctx, deps, r.store, key) {
		log.Warn("Keeping previous attestation report")
	}
}
