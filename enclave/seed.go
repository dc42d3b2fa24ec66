package enclave

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// seedKeyInfo domain-separates keys derived by SeedKeyProvider.
var seedKeyInfo = []byte("reporteer/enclave-key/v1")

// SeedKeyProvider derives the enclave key from an operator supplied seed with
// HKDF-SHA256. It has no hardware binding and exists for development hosts
// without a TEE.
type SeedKeyProvider struct {
	seed []byte
}

// NewSeedKeyProvider parses a hex-encoded seed of at least 32 bytes.
func NewSeedKeyProvider(seedHex string) (*SeedKeyProvider, error) {
	if seedHex == "" {
		return nil, errors.New("enclave-key-seed is required for the seed provider")
	}

	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid enclave-key-seed: %w", err)
	}
	if len(seed) < 32 {
		return nil, fmt.Errorf("invalid enclave-key-seed: %d bytes, at least 32 required", len(seed))
	}

	return &SeedKeyProvider{seed: seed}, nil
}

func (*SeedKeyProvider) Name() string { return "seed" }

func (p *SeedKeyProvider) DerivedKey(ctx context.Context) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, p.seed, nil, seedKeyInfo), key); err != nil {
		return nil, fmt.Errorf("hkdf expansion failed: %w", err)
	}
	return key, nil
}
