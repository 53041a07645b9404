package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Password derivation parameters of KNX IP Secure.
const (
	PBKDF2Iterations = 65536

	UserPasswordSalt             = "user-password.1.secure.ip.knx.org"
	DeviceAuthenticationCodeSalt = "device-authentication-code.1.secure.ip.knx.org"
)

// PBKDF2SHA256 derives a key from a password using PBKDF2-HMAC-SHA256.
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

// DeriveUserPassword returns the 16 byte user password hash that keys the
// SESSION_AUTHENTICATE MAC.
func DeriveUserPassword(password string) []byte {
	return PBKDF2SHA256(latin1(password), []byte(UserPasswordSalt), PBKDF2Iterations, KeySize)
}

// DeriveDeviceAuthenticationCode returns the 16 byte device authentication
// code that keys the SESSION_RESPONSE MAC.
func DeriveDeviceAuthenticationCode(password string) []byte {
	return PBKDF2SHA256(latin1(password), []byte(DeviceAuthenticationCodeSalt), PBKDF2Iterations, KeySize)
}

// latin1 encodes s as ISO 8859-1. Characters outside latin-1 become '?'.
func latin1(s string) []byte {
	b, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}
