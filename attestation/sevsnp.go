package attestation

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	sev_client "github.com/google/go-sev-guest/client"
	"github.com/google/go-sev-guest/proto/sevsnp"
	sev_verify "github.com/google/go-sev-guest/verify"
	"github.com/ruteri/tee-reporteer/interfaces"
)

// SEVSNPProvider requests extended attestation reports from the AMD secure
// processor through the SEV guest device.
type SEVSNPProvider struct{}

func (SEVSNPProvider) Name() string { return KindSEVSNP }

func (SEVSNPProvider) Attest(ctx context.Context, message []byte) (*interfaces.AttestationReport, error) {
	reportData := interfaces.ReportDataFor(message)

	dev, err := sev_client.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("could not open sev-guest device: %w", err)
	}
	defer dev.Close()

	att, err := sev_client.GetExtendedReport(dev, reportData)
	if err != nil {
		return nil, fmt.Errorf("could not get extended report: %w", err)
	}

	return &interfaces.AttestationReport{
		Type:       SEVSNPReportType,
		Message:    message,
		ReportData: reportData,
		Fields:     ProtoFields(att),
		Evidence:   att,
	}, nil
}

func (SEVSNPProvider) Verify(ctx context.Context, report *interfaces.AttestationReport, message []byte) (*interfaces.VerificationResult, error) {
	att, ok := report.Evidence.(*sevsnp.Attestation)
	if !ok {
		return nil, fmt.Errorf("unsupported evidence type: %T", report.Evidence)
	}
	if att.GetReport() == nil {
		return nil, fmt.Errorf("attestation carries no report")
	}

	if err := sev_verify.SnpAttestation(att, sev_verify.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("report verification failed: %w", err)
	}

	snpReport := att.GetReport()
	expected := interfaces.ReportDataFor(message)
	if !bytes.Equal(snpReport.GetReportData(), expected[:]) {
		return nil, fmt.Errorf("invalid report data %x, expected %x", snpReport.GetReportData(), expected[:])
	}

	return &interfaces.VerificationResult{
		Measurements: map[string]string{
			"measurement": hex.EncodeToString(snpReport.GetMeasurement()),
			"host_data":   hex.EncodeToString(snpReport.GetHostData()),
			"chip_id":     hex.EncodeToString(snpReport.GetChipId()),
		},
		Detail: "VCEK signature chain and report data verified",
	}, nil
}
