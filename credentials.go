package go_loco

import "fmt"

// Credentials carries the caller-supplied identity placed into CHECKIN and
// LOGINLIST request bodies. How the oauth token was obtained is outside this
// library's knowledge; the library never refreshes it, it only classifies a
// server rejection as ErrTokenInvalid for the caller to act on.
type Credentials struct {
	UserID     int64  // numeric account id, 0 if unknown before login
	OAuthToken string // opaque bearer token
	DeviceUUID string // device identifier registered with the account
}

// Validate checks that the fields required by the login stage are present.
func (c *Credentials) Validate() error {
	if c.OAuthToken == "" {
		return fmt.Errorf("%w: oauth token is empty", ErrInvalidConfiguration)
	}
	if c.DeviceUUID == "" {
		return fmt.Errorf("%w: device uuid is empty", ErrInvalidConfiguration)
	}
	return nil
}
