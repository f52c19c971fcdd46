package go_loco

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// defaultPublicKeyB64 is the 2048-bit RSA public key (e=3) the LOCO servers
// expect handshakes to be wrapped under, extracted from the desktop client
// binary. Base64-encoded PKCS#1 DER.
const defaultPublicKeyB64 = "MIIBCAKCAQEAo7B26MRFhR8ZpnDCMarG20Lv0JcX0GBIpcxWkGzRqye53zf/1QF+" +
	"fBOhQFtdHD5IeaakmdPGGKckcrC1DKXvHvbupwNp2UE/5mLY4rR5qfchQu5wzubCr" +
	"RIEXVKyXEogSiiWjjfwumpJ7j7J8qx6ZRhBYPIvYsQ6QGfNjSpvE9m4KYqwAnY9I" +
	"2ydGHnX/OW4+pEIgrIeFSR+DQokeRMI5RmDYUQC6foDBXxX6eF4scw5/mcojvxGG" +
	"UXLyqEdH8wSPnULhh8NRH6+PBFfQRpC3JXdsh2kJ3SlvLHd9/pfEGKAEMdPNvMcQ" +
	"O/P4on9gbq6RKZVamwwEhBBS2Ajw/RjcQIBAw=="

// TimeoutConfig holds per-stage timeouts in seconds. Zero values fall back
// to the defaults applied by LoadConfig/DefaultConfig.
type TimeoutConfig struct {
	Booking int `toml:"booking"`
	Checkin int `toml:"checkin"`
	Login   int `toml:"login"`
	Request int `toml:"request"`
}

// BookingTimeout returns the booking stage timeout as a duration.
func (t TimeoutConfig) BookingTimeout() time.Duration { return time.Duration(t.Booking) * time.Second }

// CheckinTimeout returns the checkin stage timeout as a duration.
func (t TimeoutConfig) CheckinTimeout() time.Duration { return time.Duration(t.Checkin) * time.Second }

// LoginTimeout returns the login stage timeout as a duration.
func (t TimeoutConfig) LoginTimeout() time.Duration { return time.Duration(t.Login) * time.Second }

// RequestTimeout returns the post-login request timeout as a duration.
func (t TimeoutConfig) RequestTimeout() time.Duration { return time.Duration(t.Request) * time.Second }

// Config carries everything the session treats as opaque external input: the
// server's RSA public key material, the fixed handshake key type tag, the
// booking endpoint, per-stage timeouts, and the client identity fields placed
// into request bodies. The session performs no discovery of its own.
type Config struct {
	// Booking endpoint. The only host the client knows up front.
	BookingHost string `toml:"booking_host"`
	BookingPort int    `toml:"booking_port"`

	// BookingPlaintext disables TLS for the booking connection. Only useful
	// against test stubs; the production booking endpoint is TLS-only.
	BookingPlaintext bool `toml:"booking_plaintext"`

	// TLSInsecureSkipVerify skips server certificate verification on the
	// booking connection. NOT for production.
	TLSInsecureSkipVerify bool `toml:"tls_insecure_skip_verify"`

	// PublicKey is the server's RSA public key: a PEM block or base64 DER.
	PublicKey string `toml:"public_key"`

	// HandshakeKeyType is the key-encryption variant tag sent in the clear
	// prefix of the handshake blob. The server accepts exactly one value
	// (LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1); anything else makes it close the
	// connection silently. Changing this breaks interoperability with no
	// error from the remote.
	HandshakeKeyType uint32 `toml:"handshake_key_type"`

	Timeouts TimeoutConfig `toml:"timeouts"`

	// Client identity fields mirrored into GETCONF/CHECKIN/LOGINLIST bodies.
	OS          string `toml:"os"`
	AppVersion  string `toml:"app_version"`
	MCCMNC      string `toml:"mccmnc"`
	Lang        string `toml:"lang"`
	CountryISO  string `toml:"country_iso"`
	NetworkType int32  `toml:"network_type"`
}

// DefaultConfig returns a configuration matching the desktop client the
// protocol was captured from.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BookingHost == "" {
		c.BookingHost = LOCO_DEFAULT_BOOKING_HOST
	}
	if c.BookingPort == 0 {
		c.BookingPort = LOCO_DEFAULT_BOOKING_PORT
	}
	if c.PublicKey == "" {
		c.PublicKey = defaultPublicKeyB64
	}
	if c.HandshakeKeyType == 0 {
		c.HandshakeKeyType = LOCO_HANDSHAKE_KEY_TYPE_OAEP_SHA1
	}
	if c.Timeouts.Booking == 0 {
		c.Timeouts.Booking = 10
	}
	if c.Timeouts.Checkin == 0 {
		c.Timeouts.Checkin = 10
	}
	if c.Timeouts.Login == 0 {
		c.Timeouts.Login = 30
	}
	if c.Timeouts.Request == 0 {
		c.Timeouts.Request = 30
	}
	if c.OS == "" {
		c.OS = LOCO_DEFAULT_OS
	}
	if c.AppVersion == "" {
		c.AppVersion = LOCO_DEFAULT_APP_VERSION
	}
	if c.MCCMNC == "" {
		c.MCCMNC = LOCO_DEFAULT_MCCMNC
	}
	if c.Lang == "" {
		c.Lang = LOCO_DEFAULT_LANG
	}
	if c.CountryISO == "" {
		c.CountryISO = LOCO_DEFAULT_COUNTRY_ISO
	}
}

// LoadConfig reads a TOML configuration file, fills in defaults for absent
// fields and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Debug("Loaded configuration from %s", path)
	return cfg, nil
}

// Validate checks ranges and that the configured key material parses.
func (c *Config) Validate() error {
	if c.BookingHost == "" {
		return fmt.Errorf("%w: booking host is empty", ErrInvalidConfiguration)
	}
	if c.BookingPort < 1 || c.BookingPort > 65535 {
		return fmt.Errorf("%w: booking port %d out of range", ErrInvalidConfiguration, c.BookingPort)
	}
	if _, err := ParsePublicKey(c.PublicKey); err != nil {
		return err
	}
	v := parseVersion(c.AppVersion)
	if v.compare(Version{}) == 0 {
		return fmt.Errorf("%w: app version %q does not parse", ErrInvalidConfiguration, c.AppVersion)
	}
	return nil
}

// ServerKey parses the configured public key material.
func (c *Config) ServerKey() (*rsa.PublicKey, error) {
	return ParsePublicKey(c.PublicKey)
}
