package config

import (
	"fmt"

	"github.com/backkem/knxip/pkg/knxip"
	"github.com/backkem/knxip/pkg/secure"
	"github.com/pion/logging"
)

// Credentials are the decoded secure settings.
type Credentials struct {
	UserID                       uint8
	UserPassword                 string
	DeviceAuthenticationPassword string
	BackboneKey                  []byte
	SerialNumber                 knxip.SerialNumber
}

// SecureCredentials decodes the hex encoded secure settings.
func (c *Config) SecureCredentials() (Credentials, error) {
	creds := Credentials{
		UserID:                       uint8(c.Secure.UserID),
		UserPassword:                 c.Secure.UserPassword,
		DeviceAuthenticationPassword: c.Secure.DeviceAuthenticationPassword,
	}
	if c.Secure.BackboneKey != "" {
		key, err := decodeKey(c.Secure.BackboneKey)
		if err != nil {
			return creds, fmt.Errorf("%w: secure.backbone_key: %v", ErrInvalidConfig, err)
		}
		creds.BackboneKey = key
	}
	if c.Secure.SerialNumber != "" {
		sn, err := knxip.ParseSerialNumber(c.Secure.SerialNumber)
		if err != nil {
			return creds, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		creds.SerialNumber = sn
	}
	return creds, nil
}

// SessionConfig builds a secure tunnelling session configuration.
func (c *Config) SessionConfig(lf logging.LoggerFactory) (secure.SessionConfig, error) {
	creds, err := c.SecureCredentials()
	if err != nil {
		return secure.SessionConfig{}, err
	}
	if creds.UserPassword == "" {
		return secure.SessionConfig{}, fmt.Errorf("%w: secure.user_password not set", ErrInvalidConfig)
	}
	return secure.SessionConfig{
		UserID:                       creds.UserID,
		UserPassword:                 creds.UserPassword,
		DeviceAuthenticationPassword: creds.DeviceAuthenticationPassword,
		SerialNumber:                 creds.SerialNumber,
		LoggerFactory:                lf,
	}, nil
}

// GroupConfig builds a secure routing configuration.
func (c *Config) GroupConfig(lf logging.LoggerFactory) (secure.GroupConfig, error) {
	creds, err := c.SecureCredentials()
	if err != nil {
		return secure.GroupConfig{}, err
	}
	if creds.BackboneKey == nil {
		return secure.GroupConfig{}, fmt.Errorf("%w: secure.backbone_key not set", ErrInvalidConfig)
	}
	return secure.GroupConfig{
		BackboneKey:      creds.BackboneKey,
		SerialNumber:     creds.SerialNumber,
		LatencyTolerance: c.Routing.LatencyTolerance,
		LoggerFactory:    lf,
	}, nil
}
