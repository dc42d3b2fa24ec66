package enclave

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKeyProvider implements interfaces.EnclaveKeyProvider for testing
type MockKeyProvider struct {
	mock.Mock
}

func (m *MockKeyProvider) DerivedKey(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyProvider) Name() string {
	return "mock"
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAcquire_ValidKey(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 32)
	provider := new(MockKeyProvider)
	provider.On("DerivedKey", mock.Anything).Return(raw, nil)

	key, err := Acquire(context.Background(), provider, testLogger())
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), key[0])
	assert.Equal(t, byte(0xab), key[31])
	assert.Len(t, key.ID(), 8)

	// The provider buffer is wiped once copied.
	assert.Equal(t, make([]byte, 32), raw)

	key.Wipe()
	assert.Equal(t, interfaces.EnclaveKey{}, *key)
	provider.AssertExpectations(t)
}

func TestAcquire_WrongLength(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		provider := new(MockKeyProvider)
		provider.On("DerivedKey", mock.Anything).Return(make([]byte, size), nil)

		key, err := Acquire(context.Background(), provider, testLogger())
		require.Error(t, err, "size %d", size)
		assert.Nil(t, key)
		assert.ErrorIs(t, err, interfaces.ErrEnclave)
	}
}

func TestAcquire_ProviderError(t *testing.T) {
	provider := new(MockKeyProvider)
	provider.On("DerivedKey", mock.Anything).Return(nil, errors.New("no such device"))

	_, err := Acquire(context.Background(), provider, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrEnclave)
	assert.Contains(t, err.Error(), "no such device")
}

func TestSeedKeyProvider(t *testing.T) {
	seedHex := strings.Repeat("01", 32)

	p1, err := NewSeedKeyProvider(seedHex)
	require.NoError(t, err)
	p2, err := NewSeedKeyProvider("0x" + seedHex)
	require.NoError(t, err)

	k1, err := p1.DerivedKey(context.Background())
	require.NoError(t, err)
	k2, err := p2.DerivedKey(context.Background())
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, bytes.Repeat([]byte{0x01}, 32), k1)

	_, err = NewSeedKeyProvider("")
	assert.Error(t, err)
	_, err = NewSeedKeyProvider("zz")
	assert.Error(t, err)
	_, err = NewSeedKeyProvider(strings.Repeat("01", 16))
	assert.Error(t, err)
}

func TestRemoteKeyProvider(t *testing.T) {
	keyHex := strings.Repeat("cd", 32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/derived_key" {
			http.Error(w, "unknown", http.StatusNotFound)
			return
		}
		w.Write([]byte(keyHex + "\n"))
	}))
	defer server.Close()

	provider := &RemoteKeyProvider{Address: server.URL + "/"}
	key, err := Acquire(context.Background(), provider, testLogger())
	require.NoError(t, err)
	assert.Equal(t, byte(0xcd), key[0])

	broken := &RemoteKeyProvider{Address: server.URL + "/missing"}
	_, err = Acquire(context.Background(), broken, testLogger())
	assert.ErrorIs(t, err, interfaces.ErrEnclave)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderOpts{})
	require.NoError(t, err)
	assert.Equal(t, KindSEVSNP, p.Name())

	p, err = NewProvider(ProviderOpts{Kind: KindSeed, Seed: strings.Repeat("aa", 32)})
	require.NoError(t, err)
	assert.Equal(t, KindSeed, p.Name())

	_, err = NewProvider(ProviderOpts{Kind: KindSeed})
	assert.ErrorIs(t, err, interfaces.ErrEnclave)

	_, err = NewProvider(ProviderOpts{Kind: KindRemote})
	assert.ErrorIs(t, err, interfaces.ErrEnclave)

	_, err = NewProvider(ProviderOpts{Kind: "tpm"})
	assert.ErrorIs(t, err, interfaces.ErrEnclave)
}

func TestRemoteKeyProvider_DefaultClientHasTimeout(t *testing.T) {
	client := (&RemoteKeyProvider{Address: "http://127.0.0.1:1"}).httpClient()
	assert.NotSame(t, http.DefaultClient, client)
	assert.Equal(t, defaultTimeout, client.Timeout)

	injected := &http.Client{}
	assert.Same(t, injected, (&RemoteKeyProvider{Client: injected}).httpClient())
}
