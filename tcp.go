package go_loco

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Transport opens the duplex byte streams the session runs over. The booking
// stage uses TLS; checkin and login use plain TCP ("legacy" connections).
// Implementations own connect timeouts; per-operation deadlines are set by
// the session on the returned net.Conn. Swappable so tests can point the
// session at in-process stubs.
type Transport interface {
	Connect(host string, port int, useTLS bool, timeout time.Duration) (net.Conn, error)
}

// Tcp is the default Transport. It dials plain TCP or TLS and keeps the TLS
// configuration used for the booking endpoint.
type Tcp struct {
	tlsConfig *tls.Config
}

// NewTcp creates a transport. insecure skips certificate verification on TLS
// connections (test stubs only, never production).
func NewTcp(insecure bool) *Tcp {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if insecure {
		Warning("TLS certificate verification DISABLED - insecure mode active")
		cfg.InsecureSkipVerify = true
	}
	return &Tcp{tlsConfig: cfg}
}

// Connect dials host:port within timeout. With useTLS the TLS handshake is
// completed before returning; the session never sees a half-established
// secure connection.
func (tcp *Tcp) Connect(host string, port int, useTLS bool, timeout time.Duration) (net.Conn, error) {
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	dialer := &net.Dialer{Timeout: timeout}

	if useTLS {
		Debug("Establishing TLS connection to %s", address)
		conn, err := tls.DialWithDialer(dialer, "tcp", address, tcp.tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: dialing TLS %s: %w", ErrTransport, address, err)
		}
		state := conn.ConnectionState()
		Debug("TLS connection established: version=%s cipher=%s",
			tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))
		return conn, nil
	}

	Debug("Establishing TCP connection to %s", address)
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing TCP %s: %w", ErrTransport, address, err)
	}
	return conn, nil
}
