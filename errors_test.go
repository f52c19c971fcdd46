package go_loco

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusErrorTokenExpired(t *testing.T) {
	err := NewStatusError(LOCO_CMD_LOGINLIST, LOCO_STATUS_TOKEN_EXPIRED)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Error("token-expired status does not match ErrTokenInvalid")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatal("errors.As failed for StatusError")
	}
	if se.Command != LOCO_CMD_LOGINLIST || se.Code != LOCO_STATUS_TOKEN_EXPIRED {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestStatusErrorOtherCodesStayOpaque(t *testing.T) {
	for _, code := range []int16{LOCO_STATUS_AUTH_FAILED, LOCO_STATUS_INVALID_DEVICE, -1} {
		err := NewStatusError(LOCO_CMD_CHECKIN, code)
		if errors.Is(err, ErrTokenInvalid) {
			t.Errorf("status %d matched ErrTokenInvalid", code)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.Code != code {
			t.Errorf("status %d not recoverable via errors.As", code)
		}
	}
}

func TestStageErrorWrapping(t *testing.T) {
	inner := NewStatusError(LOCO_CMD_LOGINLIST, LOCO_STATUS_TOKEN_EXPIRED)
	err := NewStageError(StateLoggingIn, inner)

	// Both the stage and the underlying kind stay reachable.
	var stage *StageError
	if !errors.As(err, &stage) || stage.Stage != StateLoggingIn {
		t.Errorf("stage not recoverable: %v", err)
	}
	if !errors.Is(err, ErrTokenInvalid) {
		t.Error("wrapped token error not reachable through StageError")
	}

	wrapped := NewStageError(StateBooking, fmt.Errorf("%w: dial refused", ErrTransport))
	if !errors.Is(wrapped, ErrTransport) {
		t.Error("wrapped transport error not reachable through StageError")
	}
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrTransport, true},
		{ErrTimeout, true},
		{NewStageError(StateBooking, ErrTransport), true},
		{ErrKeyFormat, false},
		{ErrTokenInvalid, false},
		{NewStatusError(LOCO_CMD_LOGINLIST, LOCO_STATUS_TOKEN_EXPIRED), false},
	}
	for _, tt := range tests {
		if got := IsTemporary(tt.err); got != tt.want {
			t.Errorf("IsTemporary(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrKeyFormat, true},
		{ErrMalformedHeader, true},
		{ErrInvalidConfiguration, true},
		{NewStageError(StateCheckingIn, ErrUnknownTypeTag), true},
		{ErrTransport, false},
		{ErrTimeout, false},
	}
	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
