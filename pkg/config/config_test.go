package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knxip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  address: 192.168.1.10
  transport: tcp
secure:
  user_id: 2
  user_password: tunnel-pw
  backbone_key: "00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f"
  serial_number: "00:fa:12:34:56:78"
  keepalive: 45s
routing:
  latency_tolerance: 500ms
logging:
  level: debug
capture:
  path: /tmp/knx.cbor
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.10:3671", cfg.Gateway.Addr())
	assert.Equal(t, TransportTCP, cfg.Gateway.Transport)
	assert.Equal(t, 2, cfg.Secure.UserID)
	assert.Equal(t, 45*time.Second, cfg.Secure.Keepalive)
	assert.Equal(t, DefaultMulticastGroup, cfg.Routing.MulticastGroup)
	assert.Equal(t, 500*time.Millisecond, cfg.Routing.LatencyTolerance)
	assert.Equal(t, "/tmp/knx.cbor", cfg.Capture.Path)
	assert.True(t, cfg.Secure.Enabled())

	creds, err := cfg.SecureCredentials()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), creds.UserID)
	assert.Len(t, creds.BackboneKey, 16)
	assert.Equal(t, knxip.SerialNumber{0x00, 0xfa, 0x12, 0x34, 0x56, 0x78}, creds.SerialNumber)

	sc, err := cfg.SessionConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "tunnel-pw", sc.UserPassword)

	gc, err := cfg.GroupConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, gc.LatencyTolerance)
	assert.Equal(t, creds.BackboneKey, gc.BackboneKey)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Secure.Enabled())
	assert.Equal(t, 2*time.Second, cfg.Routing.LatencyTolerance)

	_, err = cfg.SessionConfig(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = cfg.GroupConfig(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway: [unclosed"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
gateway:
  address: 10.0.0.1
  transport: tcp
secure:
  user_password: from-file
`)
	t.Setenv("KNXIP_GATEWAY_ADDRESS", "10.0.0.2")
	t.Setenv("KNXIP_GATEWAY_PORT", "3700")
	t.Setenv("KNXIP_USER_ID", "5")
	t.Setenv("KNXIP_USER_PASSWORD", "from-env")
	t.Setenv("KNXIP_DEVICE_AUTH_PASSWORD", "device")
	t.Setenv("KNXIP_BACKBONE_KEY", "000102030405060708090a0b0c0d0e0f")
	t.Setenv("KNXIP_LOG_LEVEL", "trace")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:3700", cfg.Gateway.Addr())
	assert.Equal(t, 5, cfg.Secure.UserID)
	assert.Equal(t, "from-env", cfg.Secure.UserPassword)
	assert.Equal(t, "device", cfg.Secure.DeviceAuthenticationPassword)
	assert.Equal(t, "trace", cfg.Logging.Level)

	t.Setenv("KNXIP_GATEWAY_PORT", "not-a-port")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.Gateway.Port = 0 }, "gateway.port"},
		{"transport", func(c *Config) { c.Gateway.Transport = "serial" }, "gateway.transport"},
		{"local address", func(c *Config) { c.Gateway.LocalAddress = "nowhere" }, "gateway.local_address"},
		{"user id", func(c *Config) { c.Secure.UserID = 128 }, "secure.user_id"},
		{"secure over udp", func(c *Config) { c.Secure.UserPassword = "pw" }, "requires gateway.transport tcp"},
		{"backbone key", func(c *Config) { c.Secure.BackboneKey = "0011" }, "secure.backbone_key"},
		{"serial", func(c *Config) { c.Secure.SerialNumber = "zz" }, "secure.serial_number"},
		{"keepalive", func(c *Config) { c.Secure.Keepalive = 0 }, "secure.keepalive"},
		{"multicast", func(c *Config) { c.Routing.MulticastGroup = "192.168.1.1" }, "routing.multicast_group"},
		{"tolerance", func(c *Config) { c.Routing.LatencyTolerance = -time.Second }, "routing.latency_tolerance"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.port")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoggerFactory(t *testing.T) {
	f := LoggingConfig{Level: "WARN"}.LoggerFactory()
	assert.Equal(t, logging.LogLevelWarn, f.DefaultLogLevel)

	f = LoggingConfig{Level: "bogus"}.LoggerFactory()
	assert.Equal(t, logging.NewDefaultLoggerFactory().DefaultLogLevel, f.DefaultLogLevel)
}
