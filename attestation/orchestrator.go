package attestation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/ruteri/tee-reporteer/state"
)

// Phase is a step of the orchestration state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAttesting
	PhaseVerifying
	PhaseSkipVerify
	PhaseRendered
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAttesting:
		return "attesting"
	case PhaseVerifying:
		return "verifying"
	case PhaseSkipVerify:
		return "skip-verify"
	case PhaseRendered:
		return "rendered"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var errAlreadyRun = errors.New("orchestrator already ran")

// Options configures an Orchestrator.
type Options struct {
	// Message is the application data bound into the report.
	Message []byte

	// VerifyAtStart enables verification of the generated report.
	VerifyAtStart bool
}

// Outcome summarizes one orchestration run.
type Outcome struct {
	// Phase is the last phase reached. Anything short of PhaseRendered means
	// the store was left untouched.
	Phase Phase

	// Status is the published report status, empty unless rendered.
	Status string

	// AttestErr is set when no report could be produced. It wraps interfaces.ErrAttestation.
	AttestErr error

	// VerifyErr is set when verification was attempted and failed. It wraps interfaces.ErrAttestation.
	VerifyErr error
}

// Orchestrator attests once and publishes both report views into the store.
// It moves strictly forward Idle → Attesting → Verifying|SkipVerify → Rendered
// and never runs twice.
type Orchestrator struct {
	provider interfaces.AttestationProvider
	store    *state.Store
	opts     Options
	log      *slog.Logger

	phase Phase
}

func NewOrchestrator(provider interfaces.AttestationProvider, store *state.Store, opts Options, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		store:    store,
		opts:     opts,
		log:      log.With("provider", provider.Name()),
		phase:    PhaseIdle,
	}
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	return o.phase
}

// Run executes the state machine. The orchestrator takes ownership of key and
// wipes it before returning. Attestation and verification failures are
// recoverable and reported through the Outcome, never as a panic or exit.
func (o *Orchestrator) Run(ctx context.Context, key *interfaces.EnclaveKey) Outcome {
	if key != nil {
		defer key.Wipe()
	}

	if o.phase != PhaseIdle {
		return Outcome{Phase: o.phase, AttestErr: fmt.Errorf("%w: %w", interfaces.ErrAttestation, errAlreadyRun)}
	}

	if key != nil {
		o.log.Debug("Attesting with enclave key context", "keyID", key.ID())
	}

	o.transition(PhaseAttesting)
	report, err := o.provider.Attest(ctx, o.opts.Message)
	if err != nil {
		err = fmt.Errorf("%w: %w", interfaces.ErrAttestation, err)
		o.log.Warn("Failed to generate attestation report", "err", err)
		return Outcome{Phase: o.phase, AttestErr: err}
	}
	o.log.Info("Attestation report generated", "type", report.Type)

	var verified bool
	var verifyErr error
	if o.opts.VerifyAtStart {
		o.transition(PhaseVerifying)
		result, err := o.provider.Verify(ctx, report, o.opts.Message)
		if err != nil {
			verifyErr = fmt.Errorf("%w: verification: %w", interfaces.ErrAttestation, err)
			o.log.Warn("Failed to verify attestation report", "err", verifyErr)
		} else {
			verified = true
			o.log.Info("Attestation report verified", "detail", result.Detail, "measurements", result.Measurements)
		}
	} else {
		o.transition(PhaseSkipVerify)
	}

	text := RenderText(report)
	envelope := RenderEnvelope(report, text, verified, verifyErr)

	o.store.Update(func(s *state.State) {
		s.ReportText = text
		s.Report = state.Some(envelope)
	})
	o.transition(PhaseRendered)

	return Outcome{Phase: o.phase, Status: envelope.Status, VerifyErr: verifyErr}
}

func (o *Orchestrator) transition(next Phase) {
	o.log.Debug("Attestation phase", "from", o.phase.String(), "to", next.String())
	o.phase = next
}
