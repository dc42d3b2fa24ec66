// Package config resolves the reporteer runtime configuration.
//
// Every setting is optional. Values come from the environment (optionally
// seeded from a .env file) or the equivalent command line flags. An invalid
// endpoint URL or server port is a configuration error; callers are expected
// to log it and continue with Default rather than abort.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ruteri/tee-reporteer/interfaces"
)

// Environment variables read by the service.
const (
	EnvEndpointURL   = "REPORTEER_ENDPOINT_URL"
	EnvServerPort    = "REPORTEER_SERVER_PORT"
	EnvLogLevel      = "REPORTEER_LOG_LEVEL"
	EnvVerifyAtStart = "VERIFY_AT_START"
	EnvAttestMessage = "REPORTEER_ATTEST_MESSAGE"
)

// Defaults applied when a setting is absent.
const (
	DefaultEndpointURL   = "http://127.0.0.1:8006/derived_key"
	DefaultServerPort    = uint16(3000)
	DefaultLogLevel      = "info"
	DefaultAttestMessage = "reporteer"
)

// Raw holds unparsed settings as they appear in the environment.
// Empty strings mean "not set".
type Raw struct {
	EndpointURL   string
	ServerPort    string
	LogLevel      string
	VerifyAtStart string
	AttestMessage string
}

// Config is the validated service configuration.
type Config struct {
	// EndpointURL locates the derived key.
	EndpointURL *url.URL

	// ServerPort is the port the HTTP surface binds on all interfaces.
	ServerPort uint16

	// LogLevel is passed to common.SetupLogger.
	LogLevel string

	// VerifyAtStart enables verification of the attestation report at startup.
	VerifyAtStart bool

	// AttestMessage is the application data the attestation report is produced over.
	AttestMessage string
}

// Default returns the built-in configuration.
func Default() *Config {
	u, _ := url.Parse(DefaultEndpointURL)
	return &Config{
		EndpointURL:   u,
		ServerPort:    DefaultServerPort,
		LogLevel:      DefaultLogLevel,
		VerifyAtStart: false,
		AttestMessage: DefaultAttestMessage,
	}
}

// Load validates raw settings. Errors wrap interfaces.ErrConfig.
func Load(raw Raw) (*Config, error) {
	cfg := Default()

	if raw.EndpointURL != "" {
		u, err := parseEndpointURL(raw.EndpointURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid endpoint URL: %v", interfaces.ErrConfig, err)
		}
		cfg.EndpointURL = u
	}

	if raw.ServerPort != "" {
		port, err := strconv.ParseUint(strings.TrimSpace(raw.ServerPort), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid server port: %v", interfaces.ErrConfig, err)
		}
		cfg.ServerPort = uint16(port)
	}

	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}

	// An unparsable flag means "off", never an error.
	if raw.VerifyAtStart != "" {
		verify, err := strconv.ParseBool(strings.TrimSpace(raw.VerifyAtStart))
		cfg.VerifyAtStart = err == nil && verify
	}

	if raw.AttestMessage != "" {
		cfg.AttestMessage = raw.AttestMessage
	}

	return cfg, nil
}

// ListenAddr returns the address the HTTP surface binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(int(c.ServerPort)))
}

func parseEndpointURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("relative URL without a base: %q", raw)
	}
	if u.Host == "" && u.Opaque == "" && u.Path == "" {
		return nil, fmt.Errorf("empty location in %q", raw)
	}
	return u, nil
}
