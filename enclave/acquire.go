package enclave

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// Acquire obtains the enclave key from provider and validates its shape.
// Any provider error or a key of the wrong length wraps interfaces.ErrEnclave;
// callers must treat it as fatal.
func Acquire(ctx context.Context, provider interfaces.EnclaveKeyProvider, log *slog.Logger) (*interfaces.EnclaveKey, error) {
	raw, err := provider.DerivedKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s: %w", interfaces.ErrEnclave, provider.Name(), err)
	}
	defer wipe(raw)

	if len(raw) != interfaces.EnclaveKeySize {
		return nil, fmt.Errorf("%w: provider %s returned %d bytes, expected %d",
			interfaces.ErrEnclave, provider.Name(), len(raw), interfaces.EnclaveKeySize)
	}

	key := new(interfaces.EnclaveKey)
	copy(key[:], raw)

	log.Debug("Acquired enclave key", "provider", provider.Name(), "keyID", key.ID())
	return key, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
