package startup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/tee-reporteer/attestation"
	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/ruteri/tee-reporteer/metrics"
	"github.com/ruteri/tee-reporteer/secrets"
	"github.com/ruteri/tee-reporteer/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockFingerprinter implements Fingerprinter for testing
type MockFingerprinter struct {
	mock.Mock
}

func (m *MockFingerprinter) Fingerprint(ctx context.Context, uri string) (string, error) {
	args := m.Called(ctx, uri)
	return args.String(0), args.Error(1)
}

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

func (m *MockKeyProvider) Name() string { return "mock" }

// MockAttestationProvider implements interfaces.AttestationProvider for testing
type MockAttestationProvider struct {
	mock.Mock
}

func (m *MockAttestationProvider) Attest(ctx context.Context, message []byte) (*interfaces.AttestationReport, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.AttestationReport), args.Error(1)
}

func (m *MockAttestationProvider) Verify(ctx context.Context, report *interfaces.AttestationReport, message []byte) (*interfaces.VerificationResult, error) {
	args := m.Called(ctx, report, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.VerificationResult), args.Error(1)
}

func (m *MockAttestationProvider) Name() string { return "mock" }

const endpoint = "http://127.0.0.1:8006/derived_key"

func validKey() []byte {
	key := make([]byte, interfaces.EnclaveKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newDeps(fetcher Fingerprinter, keys interfaces.EnclaveKeyProvider, provider interfaces.AttestationProvider, verify bool) Deps {
	return Deps{
		Fetcher:     fetcher,
		EndpointURL: endpoint,
		KeyProvider: keys,
		Attestation: provider,
		Options:     attestation.Options{Message: []byte("reporteer"), VerifyAtStart: verify},
		Log:         testLogger(),
	}
}

func TestRun_HappyPath(t *testing.T) {
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("deadbeef", nil)
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil)

	store, err := Run(context.Background(), newDeps(fetcher, keys, attestation.DummyProvider{}, false))
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, "deadbeef", snap.Fingerprint)
	envelope, ok := snap.Report.Get()
	require.True(t, ok)
	assert.Equal(t, attestation.DummyReportType, envelope.ReportType)
	assert.Equal(t, state.StatusGenerated, envelope.Status)
	assert.Equal(t, "reporteer", envelope.Message)
	assert.Equal(t, snap.ReportText, envelope.Details)

	fetcher.AssertExpectations(t)
	keys.AssertExpectations(t)
}

func TestRun_VerifyAtStart(t *testing.T) {
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("deadbeef", nil)
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil)

	store, err := Run(context.Background(), newDeps(fetcher, keys, attestation.DummyProvider{}, true))
	require.NoError(t, err)

	envelope, ok := store.Snapshot().Report.Get()
	require.True(t, ok)
	assert.Equal(t, state.StatusVerified, envelope.Status)
}

func TestRun_FetchFailureDegrades(t *testing.T) {
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("", interfaces.ErrFetch)
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil)

	m, err := metrics.New("test", "")
	require.NoError(t, err)
	deps := newDeps(fetcher, keys, attestation.DummyProvider{}, false)
	deps.Metrics = m

	store, err := Run(context.Background(), deps)
	require.NoError(t, err)
	assert.Equal(t, interfaces.FingerprintUnavailable, store.Snapshot().Fingerprint)

	// The rest of the sequence still ran.
	_, ok := store.Snapshot().Report.Get()
	assert.True(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StartupSteps.WithLabelValues(StepFetch, metrics.OutcomeDegraded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FingerprintAvailable))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttestationStatus.WithLabelValues(state.StatusGenerated)))
}

func TestRun_UnreachableEndpointDegrades(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/derived_key"
	server.Close()

	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil)

	deps := newDeps(secrets.NewFetcher(secrets.NewSourceFactory(testLogger()), testLogger()), keys, attestation.DummyProvider{}, false)
	deps.EndpointURL = url

	store, err := Run(context.Background(), deps)
	require.NoError(t, err)
	assert.Equal(t, interfaces.FingerprintUnavailable, store.Snapshot().Fingerprint)
}

func TestRun_EnclaveFailureIsFatal(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
		err  error
	}{
		{name: "provider error", err: errors.New("no sev-guest device")},
		{name: "short key", key: make([]byte, 16)},
		{name: "long key", key: make([]byte, 64)},
		{name: "empty key", key: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(MockFingerprinter)
			fetcher.On("Fingerprint", mock.Anything, endpoint).Return("deadbeef", nil)
			keys := new(MockKeyProvider)
			if tt.err != nil {
				keys.On("DerivedKey", mock.Anything).Return(nil, tt.err)
			} else {
				keys.On("DerivedKey", mock.Anything).Return(tt.key, nil)
			}
			provider := new(MockAttestationProvider)

			store, err := Run(context.Background(), newDeps(fetcher, keys, provider, true))
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrEnclave)
			assert.Nil(t, store)

			provider.AssertNotCalled(t, "Attest", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_AttestationFailureKeepsDefaults(t *testing.T) {
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("deadbeef", nil)
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil)
	provider := new(MockAttestationProvider)
	provider.On("Attest", mock.Anything, []byte("reporteer")).Return(nil, errors.New("no device"))

	store, err := Run(context.Background(), newDeps(fetcher, keys, provider, true))
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, "deadbeef", snap.Fingerprint)
	assert.Equal(t, state.DefaultReportText, snap.ReportText)
	_, ok := snap.Report.Get()
	assert.False(t, ok)
	provider.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_StepOrder(t *testing.T) {
	var order []string

	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("deadbeef", nil).
		Run(func(mock.Arguments) { order = append(order, StepFetch) })
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil).
		Run(func(mock.Arguments) { order = append(order, StepEnclave) })
	provider := new(MockAttestationProvider)
	report := &interfaces.AttestationReport{Type: "t", Message: []byte("reporteer")}
	provider.On("Attest", mock.Anything, mock.Anything).Return(report, nil).
		Run(func(mock.Arguments) { order = append(order, StepAttest) })
	provider.On("Verify", mock.Anything, report, []byte("reporteer")).Return(&interfaces.VerificationResult{}, nil).
		Run(func(mock.Arguments) { order = append(order, StepVerify) })

	_, err := Run(context.Background(), newDeps(fetcher, keys, provider, true))
	require.NoError(t, err)
	assert.Equal(t, []string{StepFetch, StepEnclave, StepAttest, StepVerify}, order)
}

func TestRefresher_UpdatesAndKeepsPrevious(t *testing.T) {
	store := state.NewStore("old")
	store.Update(func(s *state.State) {
		s.ReportText = "old report"
		s.Report = state.Some(state.ReportEnvelope{Details: "old report", Status: state.StatusVerified})
	})

	// Fetch and attestation both fail: nothing changes.
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("", interfaces.ErrFetch).Once()
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil)
	provider := new(MockAttestationProvider)
	provider.On("Attest", mock.Anything, mock.Anything).Return(nil, errors.New("transient")).Once()

	refresher := NewRefresher(store, newDeps(fetcher, keys, provider, false), time.Minute)
	refresher.RefreshOnce(context.Background())

	snap := store.Snapshot()
	assert.Equal(t, "old", snap.Fingerprint)
	assert.Equal(t, "old report", snap.ReportText)

	// Both succeed: everything is replaced.
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("new", nil).Once()
	provider.On("Attest", mock.Anything, mock.Anything).
		Return(&interfaces.AttestationReport{Type: "t", Message: []byte("reporteer")}, nil).Once()

	refresher.RefreshOnce(context.Background())

	snap = store.Snapshot()
	assert.Equal(t, "new", snap.Fingerprint)
	envelope, ok := snap.Report.Get()
	require.True(t, ok)
	assert.Equal(t, state.StatusGenerated, envelope.Status)
	assert.Equal(t, snap.ReportText, envelope.Details)
}

func TestRefresher_EnclaveFailureIsNotFatal(t *testing.T) {
	store := state.NewStore("fp")
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("fp", nil)
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(nil, errors.New("device busy"))
	provider := new(MockAttestationProvider)

	NewRefresher(store, newDeps(fetcher, keys, provider, false), time.Minute).RefreshOnce(context.Background())

	assert.Equal(t, state.DefaultReportText, store.Snapshot().ReportText)
	provider.AssertNotCalled(t, "Attest", mock.Anything, mock.Anything)
}

func TestRefresher_StopsOnCancel(t *testing.T) {
	fetcher := new(MockFingerprinter)
	fetcher.On("Fingerprint", mock.Anything, endpoint).Return("fp", nil).Maybe()
	keys := new(MockKeyProvider)
	keys.On("DerivedKey", mock.Anything).Return(validKey(), nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRefresher(state.NewStore("fp"), newDeps(fetcher, keys, attestation.DummyProvider{}, false), 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
