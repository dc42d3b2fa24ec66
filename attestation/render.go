package attestation

import (
	"fmt"
	"strings"

	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/ruteri/tee-reporteer/state"
)

// RenderText produces the human-readable dump of report.
func RenderText(report *interfaces.AttestationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s {\n", report.Type)
	fmt.Fprintf(&b, "    message: %q,\n", report.Message)
	fmt.Fprintf(&b, "    report_data: %x,\n", report.ReportData)
	for _, f := range report.Fields {
		fmt.Fprintf(&b, "    %s: %s,\n", f.Name, f.Value)
	}
	b.WriteString("}")
	return b.String()
}

// RenderEnvelope builds the JSON view of report. A non-nil verifyErr is
// carried in the envelope and forces the generated status.
func RenderEnvelope(report *interfaces.AttestationReport, text string, verified bool, verifyErr error) state.ReportEnvelope {
	envelope := state.ReportEnvelope{
		ReportType: report.Type,
		Message:    string(report.Message),
		Status:     state.StatusGenerated,
		Details:    text,
	}
	if verified && verifyErr == nil {
		envelope.Status = state.StatusVerified
	}
	if verifyErr != nil {
		envelope.VerificationError = verifyErr.Error()
	}
	return envelope
}
