package go_loco

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// NewSession creates a session for one connection attempt. config nil means
// DefaultConfig; credentials are required for the login stage but may be
// empty for callers that only exercise booking/checkin against stubs.
//
// A session is single-shot: Connect runs Booking → Checkin → Login once, and
// any failure is terminal. Retrying means constructing a new session.
func NewSession(config *Config, creds *Credentials) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if creds == nil {
		creds = &Credentials{}
	}
	return &Session{
		config:    config,
		creds:     creds,
		transport: NewTcp(config.TLSInsecureSkipVerify),
		crypto:    NewCrypto(),
		login:     LoginListV1{},
		state:     StateIdle,
		pending:   make(map[uint32]chan *Packet),
		push:      make(chan *Packet, 64),
		closed:    make(chan struct{}),
	}, nil
}

// SetTransport replaces the transport adapter. Must be called before Connect.
func (s *Session) SetTransport(t Transport) { s.transport = t }

// SetMetrics attaches a metrics collector. Must be called before Connect.
func (s *Session) SetMetrics(m MetricsCollector) { s.metrics = m }

// SetCallbacks attaches session callbacks. Must be called before Connect.
func (s *Session) SetCallbacks(cb *SessionCallbacks) { s.callbacks = cb }

// SetLoginPayload replaces the login request contract. Must be called before
// Connect.
func (s *Session) SetLoginPayload(p LoginPayload) { s.login = p }

// SetCrypto replaces the randomness source used for handshakes. For tests.
func (s *Session) SetCrypto(c *Crypto) { s.crypto = c }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal failure reason, nil unless State is StateFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// UserID returns the account id from the login response, 0 before login.
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// LoginResponse returns the login response body, nil before authentication.
func (s *Session) LoginResponse() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginBody
}

// TicketEndpoint returns the checkin host/port received from booking.
func (s *Session) TicketEndpoint() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticketHost, s.ticketPort
}

// AssignedEndpoint returns the chat host/port received from checkin.
func (s *Session) AssignedEndpoint() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locoHost, s.locoPort
}

// Push returns the unsolicited-message sink: server-pushed packets that were
// not responses to a pending request, delivered only after authentication.
// The channel is closed when the session ends; consumers drain it
// independently of issuing requests.
func (s *Session) Push() <-chan *Packet {
	return s.push
}

// ensureInitialized rejects zero-value Session usage.
func (s *Session) ensureInitialized() error {
	if s.config == nil || s.transport == nil || s.crypto == nil || s.push == nil {
		return ErrSessionNotInitialized
	}
	return nil
}

// Connect runs the full session flow. On success the session is
// Authenticated with a live secure channel; on failure it is Failed with a
// structured reason and must be discarded. One attempt per stage, no
// internal retries; retry policy is entirely the caller's.
func (s *Session) Connect() error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("loco: connect from state %s", state)
	}
	s.mu.Unlock()

	if err := s.booking(); err != nil {
		return err
	}
	if err := s.checkin(); err != nil {
		return err
	}
	return s.loginStage()
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	Debug("Session state -> %s", state)
	if s.callbacks != nil && s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(s, state)
	}
}

// fail moves the session to its terminal Failed state, wrapping err with the
// stage it occurred in, and tears down any live connection and crypto state.
func (s *Session) fail(stage SessionState, err error) error {
	wrapped := NewStageError(stage, err)

	s.mu.Lock()
	s.state = StateFailed
	s.failure = wrapped
	s.mu.Unlock()

	Error("Session failed: %v", wrapped)
	if s.metrics != nil {
		s.metrics.IncrementError(errorCategory(err))
		s.metrics.SetConnectionState("failed")
	}
	if s.callbacks != nil && s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(s, StateFailed)
	}
	s.teardown()
	return wrapped
}

// errorCategory buckets an error for metrics.
func errorCategory(err error) string {
	switch {
	case errors.Is(err, ErrHandshakeRejected):
		return "handshake"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		var se *StatusError
		if errors.As(err, &se) {
			return "status"
		}
		return "protocol"
	}
}

// teardown closes the active connection, releases the crypto context and
// signals all waiters. Idempotent.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.mu.Lock()
		conn := s.conn
		ctx := s.ctx
		loopStarted := s.loopStarted
		s.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if ctx != nil {
			ctx.Release()
		}
		// The read loop is the only sender on push and closes it on exit.
		// If it never started there is no sender, so close here.
		if !loopStarted {
			close(s.push)
		}
	})
}

// Close shuts the session down. Per the session contract closing the
// transport at any point is terminal: an Authenticated session moves to
// Failed with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state != StateFailed {
		s.state = StateFailed
		if s.failure == nil {
			s.failure = ErrSessionClosed
		}
	}
	s.mu.Unlock()
	s.teardown()
	s.wg.Wait()
}

// booking runs the GETCONF exchange over TLS and records the ticket
// host/port for checkin.
func (s *Session) booking() error {
	s.setState(StateBooking)
	start := time.Now()
	timeout := s.config.Timeouts.BookingTimeout()

	conn, err := s.transport.Connect(s.config.BookingHost, s.config.BookingPort,
		!s.config.BookingPlaintext, timeout)
	if err != nil {
		return s.fail(StateBooking, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	builder := NewPacketBuilder()
	pkt, err := builder.Build(LOCO_CMD_GETCONF, buildGetConfBody(s.config))
	if err != nil {
		return s.fail(StateBooking, err)
	}
	if err := s.writePacket(conn, pkt); err != nil {
		return s.fail(StateBooking, classifyExchangeErr(err, false))
	}

	resp, err := s.readPacket(conn, nil)
	if err != nil {
		return s.fail(StateBooking, classifyExchangeErr(err, false))
	}
	doc, err := resp.Document()
	if err != nil {
		return s.fail(StateBooking, err)
	}
	if code := statusOf(resp, doc); code != LOCO_STATUS_OK {
		return s.fail(StateBooking, NewStatusError(LOCO_CMD_GETCONF, code))
	}

	host, port, err := parseBookingResponse(doc)
	if err != nil {
		return s.fail(StateBooking, err)
	}

	s.mu.Lock()
	s.ticketHost, s.ticketPort = host, port
	s.mu.Unlock()
	s.setState(StateBooked)
	if s.metrics != nil {
		s.metrics.RecordStageLatency(StateBooking, time.Since(start))
	}
	Info("Booking complete: ticket server %s:%d", host, port)
	return nil
}

// parseBookingResponse extracts the first checkin host from ticket.lsl and
// the first port from wifi.ports.
func parseBookingResponse(doc *Document) (string, int, error) {
	ticket, ok := doc.GetDocument("ticket")
	if !ok {
		return "", 0, fmt.Errorf("%w: booking response has no ticket", ErrMalformedResponse)
	}
	lsl, ok := ticket.GetArray("lsl")
	if !ok || len(lsl) == 0 {
		return "", 0, fmt.Errorf("%w: booking response has no checkin hosts", ErrMalformedResponse)
	}
	host, ok := lsl[0].(string)
	if !ok || host == "" {
		return "", 0, fmt.Errorf("%w: checkin host is not a string", ErrMalformedResponse)
	}

	port := LOCO_DEFAULT_PORT
	if wifi, ok := doc.GetDocument("wifi"); ok {
		if ports, ok := wifi.GetArray("ports"); ok && len(ports) > 0 {
			if p, ok := intValue(ports[0]); ok && p > 0 && p <= 65535 {
				port = int(p)
			}
		}
	}
	return host, port, nil
}

// checkin opens a one-shot legacy connection to the ticket server, runs the
// handshake and the CHECKIN exchange, and records the assigned chat server.
func (s *Session) checkin() error {
	s.setState(StateCheckingIn)
	start := time.Now()
	timeout := s.config.Timeouts.CheckinTimeout()

	conn, ctx, builder, err := s.openSecure(s.ticketHost, s.ticketPort, timeout)
	if err != nil {
		return s.fail(StateCheckingIn, err)
	}
	defer conn.Close()
	defer ctx.Release()

	resp, doc, err := s.secureExchange(conn, ctx, builder,
		LOCO_CMD_CHECKIN, buildCheckinBody(s.config, s.creds))
	if err != nil {
		return s.fail(StateCheckingIn, err)
	}
	if code := statusOf(resp, doc); code != LOCO_STATUS_OK {
		return s.fail(StateCheckingIn, NewStatusError(LOCO_CMD_CHECKIN, code))
	}

	host, ok := doc.GetString("host")
	if !ok || host == "" {
		return s.fail(StateCheckingIn, fmt.Errorf("%w: checkin response has no host", ErrMalformedResponse))
	}
	port64, ok := doc.GetInt64("port")
	if !ok || port64 < 1 || port64 > 65535 {
		return s.fail(StateCheckingIn, fmt.Errorf("%w: checkin response has no usable port", ErrMalformedResponse))
	}

	s.mu.Lock()
	s.locoHost, s.locoPort = host, int(port64)
	s.mu.Unlock()
	s.setState(StateCheckedIn)
	if s.metrics != nil {
		s.metrics.RecordStageLatency(StateCheckingIn, time.Since(start))
	}
	Info("Checkin complete: assigned server %s:%d", host, port64)
	return nil
}

// loginStage opens the final legacy connection to the assigned server,
// repeats the handshake with a fresh context and attempts login. On success
// the connection stays open and the read loop takes over.
func (s *Session) loginStage() error {
	s.setState(StateLoggingIn)
	start := time.Now()
	timeout := s.config.Timeouts.LoginTimeout()

	body, err := s.login.Body(s.config, s.creds)
	if err != nil {
		return s.fail(StateLoggingIn, err)
	}

	conn, ctx, builder, err := s.openSecure(s.locoHost, s.locoPort, timeout)
	if err != nil {
		return s.fail(StateLoggingIn, err)
	}

	resp, doc, err := s.secureExchange(conn, ctx, builder, s.login.Command(), body)
	if err != nil {
		conn.Close()
		ctx.Release()
		return s.fail(StateLoggingIn, err)
	}
	if code := statusOf(resp, doc); code != LOCO_STATUS_OK {
		conn.Close()
		ctx.Release()
		return s.fail(StateLoggingIn, NewStatusError(s.login.Command(), code))
	}

	userID, _ := doc.GetInt64("userId")

	conn.SetDeadline(time.Time{})
	s.mu.Lock()
	s.conn = conn
	s.ctx = ctx
	s.builder = builder
	s.userID = userID
	s.loginBody = doc
	s.loopStarted = true
	s.mu.Unlock()

	s.setState(StateAuthenticated)
	if s.metrics != nil {
		s.metrics.RecordStageLatency(StateLoggingIn, time.Since(start))
		s.metrics.SetConnectionState("authenticated")
	}
	Info("Login complete: userId=%d", userID)

	s.wg.Add(1)
	go s.readLoop()
	return nil
}

// openSecure dials a legacy TCP connection, generates a fresh CryptoContext
// (contexts are never reused across connections) and sends the handshake
// blob. Returns a fresh packet-id builder for the connection.
func (s *Session) openSecure(host string, port int, timeout time.Duration) (net.Conn, *CryptoContext, *PacketBuilder, error) {
	serverKey, err := ParsePublicKey(s.config.PublicKey)
	if err != nil {
		return nil, nil, nil, err
	}

	conn, err := s.transport.Connect(host, port, false, timeout)
	if err != nil {
		return nil, nil, nil, err
	}
	conn.SetDeadline(time.Now().Add(timeout))

	ctx, err := s.crypto.NewContext(s.config.HandshakeKeyType)
	if err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	blob, err := ctx.WrapForTransport(serverKey)
	if err != nil {
		conn.Close()
		ctx.Release()
		return nil, nil, nil, err
	}
	if _, err := conn.Write(blob); err != nil {
		conn.Close()
		ctx.Release()
		return nil, nil, nil, fmt.Errorf("%w: writing handshake: %w", ErrTransport, err)
	}
	Debug("Handshake sent to %s:%d (keyType=%d)", host, port, ctx.KeyType())
	return conn, ctx, NewPacketBuilder(), nil
}

// secureExchange sends one encrypted request and reads one encrypted
// response on a handshaken connection. A connection the server closes
// instead of answering is reported as ErrHandshakeRejected: the remote gives
// no detail, and the usual cause is a handshakeKeyType it does not accept.
func (s *Session) secureExchange(conn net.Conn, ctx *CryptoContext, builder *PacketBuilder, command string, body *Document) (*Packet, *Document, error) {
	pkt, err := builder.Build(command, body)
	if err != nil {
		return nil, nil, err
	}
	pkt.Body = ctx.EncryptBody(pkt.Body)
	pkt.Header.BodyType |= LOCO_BODY_ENCRYPTED

	if err := s.writePacket(conn, pkt); err != nil {
		return nil, nil, classifyExchangeErr(err, true)
	}
	resp, err := s.readPacket(conn, ctx)
	if err != nil {
		return nil, nil, classifyExchangeErr(err, true)
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, nil, err
	}
	return resp, doc, nil
}

// writePacket writes pkt and feeds metrics.
func (s *Session) writePacket(conn net.Conn, pkt *Packet) error {
	if err := WritePacket(conn, &pkt.Header, pkt.Body); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementPacketSent(pkt.Header.Command)
		s.metrics.AddBytesSent(uint64(LOCO_HEADER_SIZE + len(pkt.Body)))
	}
	return nil
}

// readPacket reads one packet, decrypting the body when the header carries
// the encryption flag and a context is available.
func (s *Session) readPacket(conn net.Conn, ctx *CryptoContext) (*Packet, error) {
	pkt, err := ReadPacket(conn)
	if err != nil {
		return nil, err
	}
	if pkt.Header.Encrypted() && ctx != nil {
		pkt.Body = ctx.DecryptBody(pkt.Body)
		pkt.Header.BodyType &^= LOCO_BODY_ENCRYPTED
	}
	if s.metrics != nil {
		s.metrics.IncrementPacketReceived(pkt.Header.Command)
		s.metrics.AddBytesReceived(uint64(LOCO_HEADER_SIZE + len(pkt.Body)))
	}
	return pkt, nil
}

// classifyExchangeErr refines transport errors: deadline hits become
// ErrTimeout, and a post-handshake connection the server closed without a
// response packet becomes ErrHandshakeRejected.
func classifyExchangeErr(err error, afterHandshake bool) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if afterHandshake &&
		(errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
			errors.Is(err, net.ErrClosed) ||
			strings.Contains(err.Error(), "connection reset") ||
			strings.Contains(err.Error(), "broken pipe")) {
		return fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
	}
	return err
}

// statusOf returns the effective status of a response: the header status
// when non-zero, otherwise the body's "status" field.
func statusOf(resp *Packet, doc *Document) int16 {
	if resp.Header.StatusCode != 0 {
		return resp.Header.StatusCode
	}
	if v, ok := doc.GetInt64("status"); ok {
		return int16(v)
	}
	return LOCO_STATUS_OK
}

// intValue widens any integer document value.
func intValue(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// SendCommand issues one request on an authenticated session and waits for
// its response. The protocol is half-duplex: at most one request may be in
// flight, enforced here rather than left implicit, so a pipelining caller
// gets ErrRequestPending instead of a correlation bug.
func (s *Session) SendCommand(command string, body *Document) (*Packet, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateAuthenticated {
		state := s.state
		failure := s.failure
		s.mu.Unlock()
		if state == StateFailed {
			return nil, failure
		}
		return nil, ErrNotAuthenticated
	}
	conn := s.conn
	ctx := s.ctx
	builder := s.builder
	s.mu.Unlock()

	pkt, err := builder.Build(command, body)
	if err != nil {
		return nil, err
	}

	s.pendingMu.Lock()
	if s.inflight {
		s.pendingMu.Unlock()
		return nil, ErrRequestPending
	}
	s.inflight = true
	ch := make(chan *Packet, 1)
	s.pending[pkt.Header.PacketID] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, pkt.Header.PacketID)
		s.inflight = false
		s.pendingMu.Unlock()
	}()

	pkt.Body = ctx.EncryptBody(pkt.Body)
	pkt.Header.BodyType |= LOCO_BODY_ENCRYPTED

	timeout := s.config.Timeouts.RequestTimeout()
	conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := s.writePacket(conn, pkt); err != nil {
		return nil, classifyExchangeErr(err, false)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-s.closed:
		if err := s.Err(); err != nil {
			return nil, err
		}
		return nil, ErrSessionClosed
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: no response to %s", ErrTimeout, command)
	}
}

// Ping sends a PING and checks the response status.
func (s *Session) Ping() error {
	resp, err := s.SendCommand(LOCO_CMD_PING, nil)
	if err != nil {
		return err
	}
	doc, err := resp.Document()
	if err != nil {
		return err
	}
	if code := statusOf(resp, doc); code != LOCO_STATUS_OK {
		return NewStatusError(LOCO_CMD_PING, code)
	}
	return nil
}

// readLoop runs after authentication. It distinguishes "response I am
// waiting for" from unsolicited server pushes by packet id, delivering the
// former to the pending waiter and everything else to the Push sink. Exits,
// failing the session, when the connection drops.
func (s *Session) readLoop() {
	defer s.wg.Done()
	// Sole sender on push; closing it here ends the consumer's range loop.
	defer close(s.push)

	s.mu.Lock()
	conn := s.conn
	ctx := s.ctx
	s.mu.Unlock()

	for {
		pkt, err := s.readPacket(conn, ctx)
		if err != nil {
			select {
			case <-s.closed:
				// Shutdown initiated locally; not a failure of its own.
			default:
				s.fail(StateAuthenticated, classifyExchangeErr(err, false))
			}
			return
		}

		s.pendingMu.Lock()
		ch, ok := s.pending[pkt.Header.PacketID]
		if ok {
			delete(s.pending, pkt.Header.PacketID)
		}
		s.pendingMu.Unlock()

		if ok {
			ch <- pkt
			continue
		}

		Debug("Unsolicited packet: %s (id=%d)", pkt.Header.Command, pkt.Header.PacketID)
		select {
		case s.push <- pkt:
		case <-s.closed:
			return
		}
	}
}
