package enclave

import (
	"fmt"
	"net/http"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// Provider kinds accepted by NewProvider.
const (
	KindSEVSNP = "sev-snp"
	KindRemote = "remote"
	KindSeed   = "seed"
)

// ProviderOpts selects and configures an enclave key provider.
type ProviderOpts struct {
	Kind       string
	Seed       string
	RemoteAddr string
	UseVCEK    bool
	Client     *http.Client
}

// NewProvider creates the enclave key provider named by opts.Kind.
// Errors wrap interfaces.ErrEnclave: a provider that cannot be built is as
// fatal as one that fails.
func NewProvider(opts ProviderOpts) (interfaces.EnclaveKeyProvider, error) {
	switch opts.Kind {
	case KindSEVSNP, "":
		return SEVSNPKeyProvider{UseVCEK: opts.UseVCEK}, nil
	case KindRemote:
		if opts.RemoteAddr == "" {
			return nil, fmt.Errorf("%w: enclave-key-remote-addr is required for the remote provider", interfaces.ErrEnclave)
		}
		return &RemoteKeyProvider{Address: opts.RemoteAddr, Client: opts.Client}, nil
	case KindSeed:
		provider, err := NewSeedKeyProvider(opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", interfaces.ErrEnclave, err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("%w: invalid enclave-key-provider: %s", interfaces.ErrEnclave, opts.Kind)
	}
}
