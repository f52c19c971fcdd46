package go_loco

import (
	"errors"
	"fmt"
)

// Standard LOCO Error Types
//
// These errors follow Go 1.13+ error wrapping conventions and can be checked
// using errors.Is() and errors.As(). Every stage of the session either
// produces the next state or a terminal failure wrapping one of these kinds;
// the session never retries internally and never hides a lower-layer error,
// it only adds stage context (see StageError).

// Sentinel errors for protocol violations and failures
var (
	// ErrTransport indicates a connect, read or write on the underlying socket
	// failed. Always reported, never silently retried inside the library.
	ErrTransport = errors.New("loco: transport error")

	// ErrMalformedHeader indicates a packet header declared a body length that
	// is implausible for the protocol. This guards against desynchronized
	// streams; the connection must be closed, not resynchronized.
	ErrMalformedHeader = errors.New("loco: malformed packet header")

	// ErrTruncatedInput indicates fewer bytes were available than a document
	// value's declared length claims. Fatal to the current connection.
	ErrTruncatedInput = errors.New("loco: truncated document input")

	// ErrUnknownTypeTag indicates an unrecognized type byte in an encoded
	// document. Either a protocol desync or a codec bug; fatal either way.
	ErrUnknownTypeTag = errors.New("loco: unknown document type tag")

	// ErrMalformedResponse indicates a response body decoded cleanly but is
	// missing a field the session flow cannot proceed without (e.g. a booking
	// response with no checkin hosts).
	ErrMalformedResponse = errors.New("loco: malformed response body")

	// ErrKeyFormat indicates the configured RSA public key could not be
	// parsed. Misconfiguration; not retryable without fixing configuration.
	ErrKeyFormat = errors.New("loco: cannot parse server public key")

	// ErrHandshakeRejected indicates the server closed the socket after
	// receiving the handshake blob without sending a response packet. The
	// remote gives no detail; the most common cause is a handshakeKeyType
	// other than the single value the server accepts.
	ErrHandshakeRejected = errors.New("loco: handshake rejected by server")

	// ErrTokenInvalid indicates the login stage was rejected with the server's
	// "token expired/invalid" status (-950). Surfaced as a named kind because
	// callers need to trigger an out-of-band token refresh rather than retry
	// blindly. This library never refreshes tokens itself.
	ErrTokenInvalid = errors.New("loco: oauth token invalid or expired")

	// ErrTimeout indicates a stage exceeded its configured time limit.
	ErrTimeout = errors.New("loco: operation timed out")

	// ErrSessionClosed indicates an operation was attempted on a session whose
	// connection has been closed. A failed session is terminal; construct a
	// new one to retry from Idle.
	ErrSessionClosed = errors.New("loco: session closed")

	// ErrNotAuthenticated indicates a command was issued before the session
	// reached the Authenticated state.
	ErrNotAuthenticated = errors.New("loco: session not authenticated")

	// ErrRequestPending indicates a second request was issued while one was
	// already in flight. The protocol is half-duplex request/response; the
	// session enforces at most one outstanding request per connection.
	ErrRequestPending = errors.New("loco: request already in flight")

	// ErrCommandTooLong indicates a command name exceeds the 11-byte header
	// field.
	ErrCommandTooLong = errors.New("loco: command exceeds 11 bytes")

	// ErrDuplicateKey indicates a document was constructed with two values
	// under the same key.
	ErrDuplicateKey = errors.New("loco: duplicate document key")

	// ErrInvalidValueKind indicates a value of an unsupported Go type was
	// placed into a document.
	ErrInvalidValueKind = errors.New("loco: unsupported document value kind")

	// ErrInvalidConfiguration indicates the loaded configuration is missing
	// required fields or contains out-of-range values.
	ErrInvalidConfiguration = errors.New("loco: invalid configuration")

	// ErrSessionNotInitialized indicates an operation on a zero-value Session.
	// Sessions must be created with NewSession.
	ErrSessionNotInitialized = errors.New("loco: session not initialized (use NewSession)")
)

// StatusError represents a structured non-zero status returned by the server
// in a response header. The login stage's token-expired code is special-cased
// into ErrTokenInvalid; all other codes pass through here as an opaque code
// plus the command name for caller inspection.
type StatusError struct {
	Command string // Command the response belongs to (e.g. "CHECKIN")
	Code    int16  // Server-assigned status code, negative on error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loco: %s failed with server status %d", e.Command, e.Code)
}

// Is reports whether the status code maps to a named sentinel. This lets
// callers write errors.Is(err, ErrTokenInvalid) without unwrapping manually.
func (e *StatusError) Is(target error) bool {
	return target == ErrTokenInvalid && e.Code == LOCO_STATUS_TOKEN_EXPIRED
}

// NewStatusError creates a StatusError for a non-zero response status.
func NewStatusError(command string, code int16) error {
	return &StatusError{Command: command, Code: code}
}

// StageError wraps a failure with the session stage it occurred in. The
// underlying error is one of the sentinel kinds above (or a StatusError) and
// remains reachable through errors.Is/errors.As.
type StageError struct {
	Stage SessionState // Stage that failed (Booking, CheckingIn, LoggingIn)
	Err   error        // Underlying error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("loco: %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage it occurred in.
func NewStageError(stage SessionState, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// IsTemporary returns true if the error is transient and a freshly constructed
// session may succeed. Retrying is always a caller-level decision; the session
// itself never retries.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		return true
	}

	type temporary interface {
		Temporary() bool
	}
	var te temporary
	if errors.As(err, &te) {
		return te.Temporary()
	}

	return false
}

// IsFatal returns true if the error indicates misconfiguration or a protocol
// desync that retrying cannot fix.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrKeyFormat) ||
		errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrTruncatedInput) ||
		errors.Is(err, ErrUnknownTypeTag) ||
		errors.Is(err, ErrInvalidConfiguration)
}
