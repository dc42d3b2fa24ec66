package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Defaults(t *testing.T) {
	store := NewStore("")
	snap := store.Snapshot()

	assert.Equal(t, interfaces.FingerprintUnavailable, snap.Fingerprint)
	assert.Equal(t, DefaultReportText, snap.ReportText)
	_, ok := snap.Report.Get()
	assert.False(t, ok)

	store = NewStore("abc123")
	assert.Equal(t, "abc123", store.Snapshot().Fingerprint)
}

func TestOptionalReport(t *testing.T) {
	var zero OptionalReport
	_, ok := zero.Get()
	assert.False(t, ok)

	_, ok = None().Get()
	assert.False(t, ok)

	env, ok := Some(ReportEnvelope{Status: StatusVerified}).Get()
	require.True(t, ok)
	assert.Equal(t, StatusVerified, env.Status)
}

func TestSnapshot_IsACopy(t *testing.T) {
	store := NewStore("one")
	snap := store.Snapshot()

	store.Update(func(s *State) { s.Fingerprint = "two" })

	assert.Equal(t, "one", snap.Fingerprint)
	assert.Equal(t, "two", store.Snapshot().Fingerprint)
}

// Readers racing a writer must always see report text and envelope from the
// same Update.
func TestStore_ConcurrentReadersNeverSeeTornReport(t *testing.T) {
	store := NewStore("fp")

	const writes = 500
	const readers = 8

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Snapshot()
				env, ok := snap.Report.Get()
				if !ok {
					if snap.ReportText != DefaultReportText {
						errs <- "report text set without envelope"
						return
					}
					continue
				}
				if env.Details != snap.ReportText {
					errs <- fmt.Sprintf("torn read: %q vs %q", env.Details, snap.ReportText)
					return
				}
			}
		}()
	}

	for i := 0; i < writes; i++ {
		text := fmt.Sprintf("report generation %d", i)
		store.Update(func(s *State) {
			s.ReportText = text
			s.Report = Some(ReportEnvelope{
				ReportType: "test",
				Message:    fmt.Sprintf("msg-%d", i),
				Status:     StatusGenerated,
				Details:    text,
			})
		})
	}

	close(stop)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
