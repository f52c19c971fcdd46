package go_loco

// SessionCallbacks provides optional callback functions for session events.
type SessionCallbacks struct {
	// OnStateChange is invoked after every state transition, including the
	// transition to StateFailed. Called from the session's goroutine; must
	// not block.
	OnStateChange func(session *Session, state SessionState)
}
