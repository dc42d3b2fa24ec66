package attestation

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/ruteri/tee-reporteer/interfaces"
)

const (
	// maxQuoteSize bounds the quote read from a remote provider.
	maxQuoteSize = 64 * 1024

	// defaultTimeout bounds a quote request when no client is injected.
	defaultTimeout = 30 * time.Second
)

// RemoteProvider obtains TDX quotes from a quote service running next to the
// workload, GET {Address}/attest/{hex(reportData)}.
type RemoteProvider struct {
	Address string
	Client  *http.Client
}

func (*RemoteProvider) Name() string { return KindRemote }

func (p *RemoteProvider) Attest(ctx context.Context, message []byte) (*interfaces.AttestationReport, error) {
	reportData := interfaces.ReportDataFor(message)
	extraDataHex := hex.EncodeToString(reportData[:])

	url := fmt.Sprintf("%s/attest/%s", strings.TrimSuffix(p.Address, "/"), extraDataHex)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteSize))
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}

	return reportFromTDXQuote(message, reportData, rawQuote)
}

func (*RemoteProvider) Verify(ctx context.Context, report *interfaces.AttestationReport, message []byte) (*interfaces.VerificationResult, error) {
	return verifyTDXReport(report, message)
}

// httpClient returns the injected client, or a pooled one bounded by defaultTimeout.
func (p *RemoteProvider) httpClient() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = defaultTimeout
	return client
}
