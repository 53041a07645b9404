// Package config loads knxip client settings from YAML with environment
// variable overrides.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate and Load for unusable settings.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Transport names accepted in gateway.transport.
const (
	TransportUDP = "udp"
	TransportTCP = "tcp"
)

// Defaults.
const (
	DefaultMulticastGroup   = "224.0.23.12"
	DefaultKeepalive        = 30 * time.Second
	DefaultLatencyTolerance = secure.DefaultLatencyTolerance
	DefaultLogLevel         = "info"
)

// Config is the root configuration.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Secure  SecureConfig  `yaml:"secure"`
	Routing RoutingConfig `yaml:"routing"`
	Logging LoggingConfig `yaml:"logging"`
	Capture CaptureConfig `yaml:"capture"`
}

// GatewayConfig addresses the KNXnet/IP server.
type GatewayConfig struct {
	// Address is the host name or IP of the gateway.
	Address string `yaml:"address"`

	// Port defaults to 3671.
	Port int `yaml:"port"`

	// Transport is "udp" or "tcp". Secure tunnelling requires tcp.
	Transport string `yaml:"transport"`

	// LocalAddress optionally selects the local interface address.
	LocalAddress string `yaml:"local_address,omitempty"`
}

// Addr returns host:port of the gateway.
func (g GatewayConfig) Addr() string {
	return net.JoinHostPort(g.Address, strconv.Itoa(g.Port))
}

// SecureConfig holds KNX IP Secure credentials. Keys and serial numbers
// are hex encoded.
type SecureConfig struct {
	// UserID is the tunnelling user, 1 for the management user.
	UserID int `yaml:"user_id"`

	UserPassword                 string `yaml:"user_password,omitempty"`
	DeviceAuthenticationPassword string `yaml:"device_authentication_password,omitempty"`

	// BackboneKey is the 16 byte secure routing key.
	BackboneKey string `yaml:"backbone_key,omitempty"`

	// SerialNumber identifies this client in secure wrappers (6 bytes).
	SerialNumber string `yaml:"serial_number,omitempty"`

	// Keepalive is the session keepalive interval.
	// Default: 30s
	Keepalive time.Duration `yaml:"keepalive"`
}

// Enabled reports whether any secure credentials are configured.
func (s SecureConfig) Enabled() bool {
	return s.UserPassword != "" || s.BackboneKey != ""
}

// RoutingConfig configures KNXnet/IP routing.
type RoutingConfig struct {
	// MulticastGroup defaults to 224.0.23.12.
	MulticastGroup string `yaml:"multicast_group"`

	// LatencyTolerance bounds how stale a secure routing timer may be.
	// Default: 2s
	LatencyTolerance time.Duration `yaml:"latency_tolerance"`
}

// LoggingConfig configures the pion logger factory.
type LoggingConfig struct {
	// Level is one of disabled, error, warn, info, debug, trace.
	Level string `yaml:"level"`
}

// CaptureConfig enables the CBOR frame capture.
type CaptureConfig struct {
	// Path of the capture file. Empty disables capturing.
	Path string `yaml:"path,omitempty"`
}

// Default returns a configuration with defaults for every optional field.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:      knxip.DefaultPort,
			Transport: TransportUDP,
		},
		Secure: SecureConfig{
			UserID:    1,
			Keepalive: DefaultKeepalive,
		},
		Routing: RoutingConfig{
			MulticastGroup:   DefaultMulticastGroup,
			LatencyTolerance: DefaultLatencyTolerance,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads configuration in this order:
//  1. defaults
//  2. the YAML file at path, skipped if path is empty
//  3. environment variables (KNXIP_*)
//
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies KNXIP_* environment variables. Secrets are
// usually supplied this way rather than in the file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("KNXIP_GATEWAY_ADDRESS"); v != "" {
		cfg.Gateway.Address = v
	}
	if v := os.Getenv("KNXIP_GATEWAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: KNXIP_GATEWAY_PORT %q", ErrInvalidConfig, v)
		}
		cfg.Gateway.Port = port
	}
	if v := os.Getenv("KNXIP_GATEWAY_TRANSPORT"); v != "" {
		cfg.Gateway.Transport = v
	}
	if v := os.Getenv("KNXIP_USER_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: KNXIP_USER_ID %q", ErrInvalidConfig, v)
		}
		cfg.Secure.UserID = id
	}
	if v := os.Getenv("KNXIP_USER_PASSWORD"); v != "" {
		cfg.Secure.UserPassword = v
	}
	if v := os.Getenv("KNXIP_DEVICE_AUTH_PASSWORD"); v != "" {
		cfg.Secure.DeviceAuthenticationPassword = v
	}
	if v := os.Getenv("KNXIP_BACKBONE_KEY"); v != "" {
		cfg.Secure.BackboneKey = v
	}
	if v := os.Getenv("KNXIP_SERIAL_NUMBER"); v != "" {
		cfg.Secure.SerialNumber = v
	}
	if v := os.Getenv("KNXIP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KNXIP_CAPTURE_PATH"); v != "" {
		cfg.Capture.Path = v
	}
	return nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Sprintf("gateway.port %d out of range", c.Gateway.Port))
	}
	switch c.Gateway.Transport {
	case TransportUDP, TransportTCP:
	default:
		errs = append(errs, fmt.Sprintf("gateway.transport must be udp or tcp, got %q", c.Gateway.Transport))
	}
	if c.Gateway.LocalAddress != "" {
		if _, err := netip.ParseAddr(c.Gateway.LocalAddress); err != nil {
			errs = append(errs, fmt.Sprintf("gateway.local_address: %v", err))
		}
	}

	if c.Secure.UserID < 1 || c.Secure.UserID > 127 {
		errs = append(errs, fmt.Sprintf("secure.user_id %d out of range 1-127", c.Secure.UserID))
	}
	if c.Secure.UserPassword != "" && c.Gateway.Transport != TransportTCP {
		errs = append(errs, "secure tunnelling requires gateway.transport tcp")
	}
	if c.Secure.BackboneKey != "" {
		if _, err := decodeKey(c.Secure.BackboneKey); err != nil {
			errs = append(errs, fmt.Sprintf("secure.backbone_key: %v", err))
		}
	}
	if c.Secure.SerialNumber != "" {
		if _, err := knxip.ParseSerialNumber(c.Secure.SerialNumber); err != nil {
			errs = append(errs, "secure.serial_number must be 6 hex bytes")
		}
	}
	if c.Secure.Keepalive <= 0 {
		errs = append(errs, "secure.keepalive must be positive")
	}

	group, err := netip.ParseAddr(c.Routing.MulticastGroup)
	if err != nil || !group.Is4() || !group.IsMulticast() {
		errs = append(errs, fmt.Sprintf("routing.multicast_group %q is not an IPv4 multicast address", c.Routing.MulticastGroup))
	}
	if c.Routing.LatencyTolerance <= 0 {
		errs = append(errs, "routing.latency_tolerance must be positive")
	}

	if _, ok := logLevels[strings.ToLower(c.Logging.Level)]; !ok {
		errs = append(errs, fmt.Sprintf("logging.level %q unknown", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// decodeKey parses a 16 byte hex key, ignoring spaces and colons.
func decodeKey(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(s))
	if err != nil {
		return nil, err
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("key of %d bytes, want 16", len(raw))
	}
	return raw, nil
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

// LoggerFactory returns a pion logger factory at the configured level.
func (l LoggingConfig) LoggerFactory() *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if level, ok := logLevels[strings.ToLower(l.Level)]; ok {
		f.DefaultLogLevel = level
	}
	return f
}
