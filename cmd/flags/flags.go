package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-reporteer/attestation"
	"github.com/ruteri/tee-reporteer/common"
	"github.com/ruteri/tee-reporteer/config"
	"github.com/ruteri/tee-reporteer/enclave"
	"github.com/ruteri/tee-reporteer/httpserver"
	"github.com/ruteri/tee-reporteer/metrics"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context, level string) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Level:   level,
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// RawConfig collects the unvalidated service settings. Validation and
// fallback to defaults happen in config.Load.
func RawConfig(cCtx *cli.Context) config.Raw {
	return config.Raw{
		EndpointURL:   cCtx.String(EndpointURLFlag.Name),
		ServerPort:    cCtx.String(ServerPortFlag.Name),
		LogLevel:      cCtx.String(LogLevelFlag.Name),
		VerifyAtStart: cCtx.String(VerifyAtStartFlag.Name),
		AttestMessage: cCtx.String(AttestMessageFlag.Name),
	}
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string, m *metrics.MetricsServer) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Metrics:                  m,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var EndpointURLFlag = &cli.StringFlag{
	Name:    "endpoint-url",
	EnvVars: []string{config.EnvEndpointURL},
	Value:   config.DefaultEndpointURL,
	Usage:   "location of the derived key: http(s)://, file://, s3:// or vault:// URI",
}

// ServerPortFlag is a string so an invalid value falls back to defaults instead of failing flag parsing.
var ServerPortFlag = &cli.StringFlag{
	Name:    "server-port",
	EnvVars: []string{config.EnvServerPort},
	Value:   "3000",
	Usage:   "port to serve the HTTP API on, bound on all interfaces",
}

var LogLevelFlag = &cli.StringFlag{
	Name:    "log-level",
	EnvVars: []string{config.EnvLogLevel},
	Value:   config.DefaultLogLevel,
	Usage:   "log level: debug, info, warn or error",
}

var VerifyAtStartFlag = &cli.StringFlag{
	Name:    "verify-at-start",
	EnvVars: []string{config.EnvVerifyAtStart},
	Value:   "false",
	Usage:   "verify the attestation report at startup; anything but a boolean means false",
}

var AttestMessageFlag = &cli.StringFlag{
	Name:    "attest-message",
	EnvVars: []string{config.EnvAttestMessage},
	Value:   config.DefaultAttestMessage,
	Usage:   "application data the attestation report is produced over",
}

var EnclaveKeyProviderFlag = &cli.StringFlag{
	Name:    "enclave-key-provider",
	EnvVars: []string{"REPORTEER_ENCLAVE_KEY_PROVIDER"},
	Value:   enclave.KindSEVSNP,
	Usage:   "enclave key provider: 'sev-snp', 'remote' or 'seed'",
}

var EnclaveKeySeedFlag = &cli.StringFlag{
	Name:    "enclave-key-seed",
	EnvVars: []string{"REPORTEER_ENCLAVE_KEY_SEED"},
	Usage:   "hex-encoded seed of at least 32 bytes (required if enclave-key-provider is 'seed')",
}

var EnclaveKeyRemoteAddrFlag = &cli.StringFlag{
	Name:    "enclave-key-remote-addr",
	EnvVars: []string{"REPORTEER_ENCLAVE_KEY_REMOTE_ADDR"},
	Usage:   "base URL of the key service (required if enclave-key-provider is 'remote')",
}

var EnclaveKeyUseVCEKFlag = &cli.BoolFlag{
	Name:    "enclave-key-use-vcek",
	EnvVars: []string{"REPORTEER_ENCLAVE_KEY_USE_VCEK"},
	Value:   false,
	Usage:   "derive the sev-snp key from the VCEK instead of the VMRK",
}

var AttestationProviderFlag = &cli.StringFlag{
	Name:    "attestation-provider",
	EnvVars: []string{"REPORTEER_ATTESTATION_PROVIDER"},
	Value:   attestation.KindSEVSNP,
	Usage:   "attestation provider: 'sev-snp', 'tdx', 'remote' or 'dummy'",
}

var AttestationRemoteAddrFlag = &cli.StringFlag{
	Name:    "attestation-remote-addr",
	EnvVars: []string{"REPORTEER_ATTESTATION_REMOTE_ADDR"},
	Usage:   "base URL of the quote service (required if attestation-provider is 'remote')",
}

var RefreshIntervalFlag = &cli.DurationFlag{
	Name:    "refresh-interval",
	EnvVars: []string{"REPORTEER_REFRESH_INTERVAL"},
	Value:   0,
	Usage:   "re-fetch the derived key and re-attest on this interval, 0 disables",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var ServiceFlags = []cli.Flag{
	EndpointURLFlag,
	ServerPortFlag,
	LogLevelFlag,
	VerifyAtStartFlag,
	AttestMessageFlag,
	EnclaveKeyProviderFlag,
	EnclaveKeySeedFlag,
	EnclaveKeyRemoteAddrFlag,
	EnclaveKeyUseVCEKFlag,
	AttestationProviderFlag,
	AttestationRemoteAddrFlag,
	RefreshIntervalFlag,
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
