package attestation

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_client "github.com/google/go-tdx-guest/client"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	tdx_verify "github.com/google/go-tdx-guest/verify"
	"github.com/ruteri/tee-reporteer/interfaces"
)

// TDXProvider requests DCAP quotes from the local TDX guest, through configfs-tsm
// when available and the legacy ioctl device otherwise.
type TDXProvider struct{}

func (TDXProvider) Name() string { return KindTDX }

func (TDXProvider) Attest(ctx context.Context, message []byte) (*interfaces.AttestationReport, error) {
	reportData := interfaces.ReportDataFor(message)

	rawQuote, err := getTDXQuote(reportData)
	if err != nil {
		return nil, fmt.Errorf("could not get tdx quote: %w", err)
	}

	return reportFromTDXQuote(message, reportData, rawQuote)
}

func (TDXProvider) Verify(ctx context.Context, report *interfaces.AttestationReport, message []byte) (*interfaces.VerificationResult, error) {
	return verifyTDXReport(report, message)
}

func getTDXQuote(reportData [64]byte) ([]byte, error) {
	qp := &tdx_client.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdx_client.OpenDevice()
	if err != nil {
		return nil, err
	}
	defer qd.Close()

	return tdx_client.GetRawQuote(qd, reportData)
}

func reportFromTDXQuote(message []byte, reportData [64]byte, rawQuote []byte) (*interfaces.AttestationReport, error) {
	protoQuote, err := tdx_abi.QuoteToProto(rawQuote)
	if err != nil {
		return nil, fmt.Errorf("could not parse quote: %w", err)
	}

	quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type: %T", protoQuote)
	}

	return &interfaces.AttestationReport{
		Type:       TDXReportType,
		Message:    message,
		ReportData: reportData,
		Fields:     ProtoFields(quote),
		Evidence:   quote,
	}, nil
}

func verifyTDXReport(report *interfaces.AttestationReport, message []byte) (*interfaces.VerificationResult, error) {
	quote, ok := report.Evidence.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported evidence type: %T", report.Evidence)
	}

	// TODO: fetch collateral before verifying to distinguish the error better
	if err := tdx_verify.TdxQuote(quote, tdx_verify.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("quote verification failed: %w", err)
	}

	body := quote.GetTdQuoteBody()
	expected := interfaces.ReportDataFor(message)
	if !bytes.Equal(body.GetReportData(), expected[:]) {
		return nil, fmt.Errorf("invalid report data %x, expected %x", body.GetReportData(), expected[:])
	}

	measurements := map[string]string{
		"mrtd":          hex.EncodeToString(body.GetMrTd()),
		"mrconfigid":    hex.EncodeToString(body.GetMrConfigId()),
		"mrowner":       hex.EncodeToString(body.GetMrOwner()),
		"mrownerconfig": hex.EncodeToString(body.GetMrOwnerConfig()),
	}
	for i, rtmr := range body.GetRtmrs() {
		measurements[fmt.Sprintf("rtmr%d", i)] = hex.EncodeToString(rtmr)
	}

	return &interfaces.VerificationResult{
		Measurements: measurements,
		Detail:       "quote signature chain and report data verified",
	}, nil
}
