package attestation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ruteri/tee-reporteer/interfaces"
)

const (
	KindSEVSNP = "sev-snp"
	KindTDX    = "tdx"
	KindRemote = "remote"
	KindDummy  = "dummy"
)

// Report types shown to clients.
const (
	SEVSNPReportType = "AMD SEV-SNP Attestation"
	TDXReportType    = "Intel TDX Attestation"
	DummyReportType  = "Dummy Attestation"
)

// ProviderOpts selects and configures an attestation provider.
type ProviderOpts struct {
	Kind string

	// RemoteAddr is the base URL of the quote service for KindRemote.
	RemoteAddr string

	Client *http.Client
}

// NewProvider returns the provider named by opts.Kind. An empty kind selects SEV-SNP.
func NewProvider(opts ProviderOpts) (interfaces.AttestationProvider, error) {
	switch opts.Kind {
	case "", KindSEVSNP:
		return SEVSNPProvider{}, nil
	case KindTDX:
		return TDXProvider{}, nil
	case KindRemote:
		if opts.RemoteAddr == "" {
			return nil, fmt.Errorf("%w: remote attestation provider requires an address", interfaces.ErrAttestation)
		}
		return &RemoteProvider{Address: opts.RemoteAddr, Client: opts.Client}, nil
	case KindDummy:
		return DummyProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown attestation provider %q", interfaces.ErrAttestation, opts.Kind)
	}
}

// Unavailable returns a provider whose every call fails with err. It lets a
// misconfigured provider degrade like a failed attestation instead of
// preventing startup.
func Unavailable(err error) interfaces.AttestationProvider {
	return unavailableProvider{err: err}
}

type unavailableProvider struct {
	err error
}

func (unavailableProvider) Name() string { return "unavailable" }

func (p unavailableProvider) Attest(context.Context, []byte) (*interfaces.AttestationReport, error) {
	return nil, p.err
}

func (p unavailableProvider) Verify(context.Context, *interfaces.AttestationReport, []byte) (*interfaces.VerificationResult, error) {
	return nil, p.err
}
