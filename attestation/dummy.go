package attestation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// DummyProvider produces unsigned, deterministic reports. Useful for local
// development and tests, never for production.
type DummyProvider struct{}

func (DummyProvider) Name() string { return KindDummy }

func (DummyProvider) Attest(ctx context.Context, message []byte) (*interfaces.AttestationReport, error) {
	reportData := interfaces.ReportDataFor(message)
	evidence := dummyEvidence(reportData)
	measurement := sha256.Sum256([]byte("dummy"))

	return &interfaces.AttestationReport{
		Type:       DummyReportType,
		Message:    message,
		ReportData: reportData,
		Fields: []interfaces.ReportField{
			{Name: "measurement", Value: hex.EncodeToString(measurement[:])},
			{Name: "evidence", Value: string(evidence)},
		},
		Evidence: evidence,
	}, nil
}

func (DummyProvider) Verify(ctx context.Context, report *interfaces.AttestationReport, message []byte) (*interfaces.VerificationResult, error) {
	evidence, ok := report.Evidence.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported evidence type: %T", report.Evidence)
	}

	expected := dummyEvidence(interfaces.ReportDataFor(message))
	if !bytes.Equal(evidence, expected) {
		return nil, fmt.Errorf("invalid dummy attestation %q, expected %q", evidence, expected)
	}

	return &interfaces.VerificationResult{Detail: "dummy report data matched"}, nil
}

func dummyEvidence(reportData [64]byte) []byte {
	return []byte(fmt.Sprintf("Attestation for %x", reportData))
}
