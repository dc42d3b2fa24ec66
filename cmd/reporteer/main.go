package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/joho/godotenv"
	"github.com/ruteri/tee-reporteer/attestation"
	"github.com/ruteri/tee-reporteer/cmd/flags"
	"github.com/ruteri/tee-reporteer/common"
	"github.com/ruteri/tee-reporteer/config"
	"github.com/ruteri/tee-reporteer/enclave"
	"github.com/ruteri/tee-reporteer/httpserver"
	"github.com/ruteri/tee-reporteer/interfaces"
	"github.com/ruteri/tee-reporteer/metrics"
	"github.com/ruteri/tee-reporteer/secrets"
	"github.com/ruteri/tee-reporteer/startup"
	"github.com/urfave/cli/v2"
)

// exitEnclaveUnavailable is the process status when no enclave key could be acquired.
const exitEnclaveUnavailable = 2

func main() {
	// Optional; variables already in the environment take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    common.PackageName,
		Usage:   "Serve the derived key fingerprint and attestation report of this confidential VM",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, flags.ServiceFlags...), flags.CommonFlags...),
		Action:  run,
	}
}

func run(cCtx *cli.Context) error {
	cfg, cfgErr := config.Load(flags.RawConfig(cCtx))
	if cfgErr != nil {
		cfg = config.Default()
	}

	logger := flags.SetupLogger(cCtx, cfg.LogLevel)
	if cfgErr != nil {
		logger.Warn("Invalid configuration, falling back to defaults", "err", cfgErr)
	}

	logger.Info("Starting reporteer",
		"endpoint", cfg.EndpointURL.Redacted(),
		"listenAddr", cfg.ListenAddr(),
		"verifyAtStart", cfg.VerifyAtStart)

	m, err := metrics.New(common.PackageName, cCtx.String(flags.MetricsAddrFlag.Name))
	if err != nil {
		logger.Error("Failed to create metrics", "err", err)
		return err
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = secrets.DefaultTimeout

	keyProvider, err := enclave.NewProvider(enclave.ProviderOpts{
		Kind:       cCtx.String(flags.EnclaveKeyProviderFlag.Name),
		Seed:       cCtx.String(flags.EnclaveKeySeedFlag.Name),
		RemoteAddr: cCtx.String(flags.EnclaveKeyRemoteAddrFlag.Name),
		UseVCEK:    cCtx.Bool(flags.EnclaveKeyUseVCEKFlag.Name),
		Client:     client,
	})
	if err != nil {
		logger.Warn("Failed to configure enclave key provider", "err", err)
		return cli.Exit(err.Error(), exitEnclaveUnavailable)
	}

	attestationProvider, err := attestation.NewProvider(attestation.ProviderOpts{
		Kind:       cCtx.String(flags.AttestationProviderFlag.Name),
		RemoteAddr: cCtx.String(flags.AttestationRemoteAddrFlag.Name),
		Client:     client,
	})
	if err != nil {
		logger.Warn("Failed to configure attestation provider, reports will be unavailable", "err", err)
		attestationProvider = attestation.Unavailable(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := startup.Deps{
		Fetcher:     secrets.NewFetcher(secrets.NewSourceFactory(logger).WithHTTPClient(client), logger),
		EndpointURL: cfg.EndpointURL.String(),
		KeyProvider: keyProvider,
		Attestation: attestationProvider,
		Options: attestation.Options{
			Message:       []byte(cfg.AttestMessage),
			VerifyAtStart: cfg.VerifyAtStart,
		},
		Metrics: m,
		Log:     logger,
	}

	store, err := startup.Run(ctx, deps)
	if err != nil {
		if errors.Is(err, interfaces.ErrEnclave) {
			return cli.Exit(err.Error(), exitEnclaveUnavailable)
		}
		return err
	}

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cfg.ListenAddr(), m), httpserver.NewHandler(store, logger))
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	if err := server.RunInBackground(); err != nil {
		logger.Error("Failed to start server", "err", err)
		return err
	}

	if interval := cCtx.Duration(flags.RefreshIntervalFlag.Name); interval > 0 {
		go startup.NewRefresher(store, deps, interval).Run(ctx)
	}

	// Wait for termination signal
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	cancel()
	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
