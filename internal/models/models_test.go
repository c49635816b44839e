package models

import (
	"errors"
	"strings"
	"testing"
)

func TestInboundMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     InboundMessage
		wantErr error
	}{
		{
			name:    "valid message",
			msg:     InboundMessage{ID: "wamid.1", From: "+15551234567", Body: "hello"},
			wantErr: nil,
		},
		{
			name:    "empty id",
			msg:     InboundMessage{From: "+15551234567", Body: "hello"},
			wantErr: ErrEmptyMessageID,
		},
		{
			name:    "empty sender",
			msg:     InboundMessage{ID: "wamid.1", Body: "hello"},
			wantErr: ErrEmptySender,
		},
		{
			name:    "empty body",
			msg:     InboundMessage{ID: "wamid.1", From: "+15551234567"},
			wantErr: ErrEmptyBody,
		},
		{
			name:    "whitespace-only body",
			msg:     InboundMessage{ID: "wamid.1", From: "+15551234567", Body: "  \t\n "},
			wantErr: ErrEmptyBody,
		},
		{
			name:    "body too long",
			msg:     InboundMessage{ID: "wamid.1", From: "+15551234567", Body: strings.Repeat("a", MaxMessageBodyLength+1)},
			wantErr: ErrBodyTooLong,
		},
		{
			name:    "body at limit",
			msg:     InboundMessage{ID: "wamid.1", From: "+15551234567", Body: strings.Repeat("a", MaxMessageBodyLength)},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRelayStateIsTerminal(t *testing.T) {
	tests := []struct {
		state RelayState
		want  bool
	}{
		{RelayStateReceived, false},
		{RelayStateClaimed, false},
		{RelayStateTranslating, false},
		{RelayStateComposed, false},
		{RelayStateDelivered, true},
		{RelayStateDuplicate, true},
		{RelayStateDeliveryFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeliveryError(t *testing.T) {
	base := errors.New("connection reset")

	transient := NewDeliveryError(base, true)
	if !strings.Contains(transient.Error(), "transient") {
		t.Errorf("expected transient message, got %q", transient.Error())
	}
	if !errors.Is(transient, base) {
		t.Error("expected Unwrap to reach the wrapped error")
	}

	permanent := NewDeliveryError(base, false)
	if !strings.Contains(permanent.Error(), "permanent") {
		t.Errorf("expected permanent message, got %q", permanent.Error())
	}

	var de *DeliveryError
	if !errors.As(error(transient), &de) {
		t.Fatal("expected errors.As to match *DeliveryError")
	}
	if !de.Retryable {
		t.Error("expected Retryable to be true")
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success(map[string]int{"count": 1})
	if ok.Status != string(APIStatusOK) {
		t.Errorf("Success status = %q, want %q", ok.Status, APIStatusOK)
	}
	if ok.Result == nil {
		t.Error("Success result should be set")
	}

	withMsg := SuccessWithMessage("saved", nil)
	if withMsg.Message != "saved" {
		t.Errorf("SuccessWithMessage message = %q", withMsg.Message)
	}

	fail := Error("bad request")
	if fail.Status != string(APIStatusError) || fail.Message != "bad request" {
		t.Errorf("Error response = %+v", fail)
	}
}
