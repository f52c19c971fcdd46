package go_loco

// Request body construction for the session flow commands.
//
// The GETCONF and CHECKIN bodies reproduce what the desktop client sends.
// The login body goes through the LoginPayload contract because its exact
// schema was never fully confirmed against a live server: callers can swap
// in a corrected or newer revision without touching the state machine.

// buildGetConfBody builds the GETCONF request sent to the booking server.
func buildGetConfBody(cfg *Config) *Document {
	return NewDocument().
		SetString("MCCMNC", cfg.MCCMNC).
		SetString("os", cfg.OS).
		SetString("model", "")
}

// buildCheckinBody builds the CHECKIN request sent after the handshake on
// the ticket connection.
func buildCheckinBody(cfg *Config, creds *Credentials) *Document {
	return NewDocument().
		SetInt64("userId", creds.UserID).
		SetString("os", cfg.OS).
		SetInt32("ntype", cfg.NetworkType).
		SetString("appVer", cfg.AppVersion).
		SetString("MCCMNC", cfg.MCCMNC).
		SetString("lang", cfg.Lang).
		SetString("countryISO", cfg.CountryISO).
		SetBool("useSub", true)
}

// LoginPayload is the pluggable contract for the login request. Command
// returns the packet command name; Body builds the request document from
// configuration and caller-supplied credentials.
type LoginPayload interface {
	Command() string
	Body(cfg *Config, creds *Credentials) (*Document, error)
}

// LoginListV1 is the LOGINLIST request as observed from the desktop client.
type LoginListV1 struct{}

// Command returns the LOGINLIST command name.
func (LoginListV1) Command() string {
	return LOCO_CMD_LOGINLIST
}

// Body builds the LOGINLIST request document.
func (LoginListV1) Body(cfg *Config, creds *Credentials) (*Document, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	doc := NewDocument().
		SetString("os", cfg.OS).
		SetInt32("ntype", cfg.NetworkType).
		SetString("appVer", cfg.AppVersion).
		SetString("MCCMNC", cfg.MCCMNC).
		SetString("prtVer", "1").
		SetString("duuid", creds.DeviceUUID).
		SetString("oauthToken", creds.OAuthToken).
		SetString("lang", cfg.Lang).
		SetInt32("dtype", LOCO_DEVICE_TYPE_PC).
		SetInt32("revision", 0).
		SetArray("chatIds", []interface{}{}).
		SetArray("maxIds", []interface{}{}).
		SetInt64("lastTokenId", 0).
		SetInt32("lbk", 0).
		SetBool("bg", false)
	return doc, nil
}
