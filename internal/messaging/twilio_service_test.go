package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/twiliowhatsapp"
)

func postTwilioForm(t *testing.T, svc *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	svc.TwilioWebhookHandler(rr, req)
	return rr
}

func TestTwilioService_SendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+1 (555) 123-4567", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "15551234567" {
		t.Errorf("recipient not canonicalized: %q", mock.SentMessages[0].To)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt status = %q, want sent", receipt.Status)
		}
	default:
		t.Fatal("expected sent receipt, got none")
	}
}

func TestTwilioService_SendMessageAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	err := svc.SendMessage(context.Background(), "+15551234567", "hello")
	if err == nil {
		t.Fatal("expected error after Stop")
	}
}

func TestTwilioWebhookHandler(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rr := postTwilioForm(t, svc, url.Values{
		"MessageSid": {"SM1234567890"},
		"From":       {"whatsapp:+15551234567"},
		"Body":       {"空港まで行ってください"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	select {
	case msg := <-svc.Messages():
		if msg.ID != "SM1234567890" {
			t.Errorf("ID = %q, want the MessageSid", msg.ID)
		}
		if msg.From != "+15551234567" {
			t.Errorf("From = %q, want whatsapp: prefix stripped", msg.From)
		}
		if msg.Body != "空港まで行ってください" {
			t.Errorf("Body = %q", msg.Body)
		}
	default:
		t.Fatal("expected inbound message, got none")
	}
}

func TestTwilioWebhookHandlerMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rr := postTwilioForm(t, svc, url.Values{
		"From": {"whatsapp:+15551234567"},
		"Body": {"hello"},
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when MessageSid is missing", rr.Code)
	}
	select {
	case msg := <-svc.Messages():
		t.Errorf("no message should be emitted, got %+v", msg)
	default:
	}
}
