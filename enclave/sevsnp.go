package enclave

import (
	"context"
	"fmt"

	sev_client "github.com/google/go-sev-guest/client"
)

// SEVSNPKeyProvider requests a derived key from the AMD secure processor
// through the SEV guest device (MSG_KEY_REQ).
type SEVSNPKeyProvider struct {
	// UseVCEK selects the chip-unique VCEK as root key instead of the VMRK.
	UseVCEK bool
}

func (SEVSNPKeyProvider) Name() string { return "sev-snp" }

func (p SEVSNPKeyProvider) DerivedKey(ctx context.Context) ([]byte, error) {
	dev, err := sev_client.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("could not open sev-guest device: %w", err)
	}
	defer dev.Close()

	resp, err := sev_client.GetDerivedKeyAcknowledgingItsLimitations(dev, &sev_client.SnpDerivedKeyReq{
		UseVCEK: p.UseVCEK,
	})
	if err != nil {
		return nil, fmt.Errorf("derived key request failed: %w", err)
	}

	key := make([]byte, len(resp.Data))
	copy(key, resp.Data[:])
	return key, nil
}
