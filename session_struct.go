package go_loco

import (
	"net"
	"sync"
)

// SessionState is the lifecycle state of a LOCO session. A session only ever
// moves forward through these states; a Failed session is terminal and must
// be discarded, with retries handled by constructing a new session.
type SessionState uint8

const (
	// StateIdle - session constructed, nothing attempted yet
	StateIdle SessionState = iota
	// StateBooking - GETCONF exchange with the booking server in progress
	StateBooking
	// StateBooked - ticket host/port received from booking
	StateBooked
	// StateCheckingIn - legacy connection + handshake + CHECKIN in progress
	StateCheckingIn
	// StateCheckedIn - assigned LOCO host/port received from checkin
	StateCheckedIn
	// StateLoggingIn - legacy connection to the assigned host, login sent
	StateLoggingIn
	// StateAuthenticated - login accepted, secure channel live
	StateAuthenticated
	// StateFailed - terminal failure, reason in Session.Err()
	StateFailed
)

// String returns a human-readable name for the session state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBooking:
		return "Booking"
	case StateBooked:
		return "Booked"
	case StateCheckingIn:
		return "CheckingIn"
	case StateCheckedIn:
		return "CheckedIn"
	case StateLoggingIn:
		return "LoggingIn"
	case StateAuthenticated:
		return "Authenticated"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Session owns one protocol session: the Booking → Checkin → Login sequence,
// the active connection, and the crypto context once a handshake succeeds.
// A session holds at most one active connection at a time; prior connections
// are closed before a new stage opens the next one.
//
// Sessions are not safe for concurrent Connect calls, but SendCommand, Push
// and Close may be used from different goroutines once authenticated. Each
// session owns an independent CryptoContext and packet-id counter; nothing is
// shared across sessions.
type Session struct {
	config    *Config
	creds     *Credentials
	transport Transport
	crypto    *Crypto
	metrics   MetricsCollector
	callbacks *SessionCallbacks
	login     LoginPayload

	mu      sync.Mutex
	state   SessionState
	failure error

	ticketHost string
	ticketPort int
	locoHost   string
	locoPort   int

	userID    int64
	loginBody *Document

	conn        net.Conn
	ctx         *CryptoContext
	builder     *PacketBuilder
	loopStarted bool

	// Request/response correlation after login. The protocol is half-duplex
	// with at most one request in flight; pending is keyed by packet id for
	// servers that echo it, inflight enforces the invariant either way.
	pendingMu sync.Mutex
	pending   map[uint32]chan *Packet
	inflight  bool

	push      chan *Packet
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}
