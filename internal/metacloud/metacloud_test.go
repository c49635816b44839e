package metacloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(
		WithAccessToken("test-token"),
		WithPhoneNumberID("123456789"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c, srv
}

func TestSendMessagePayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody sendRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := c.SendMessage(context.Background(), "15551234567", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	if gotPath != "/123456789/messages" {
		t.Errorf("path = %q, want /123456789/messages", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotBody.MessagingProduct != "whatsapp" || gotBody.Type != "text" {
		t.Errorf("unexpected send envelope: %+v", gotBody)
	}
	if gotBody.To != "15551234567" || gotBody.Text.Body != "hello" {
		t.Errorf("unexpected recipient/body: %+v", gotBody)
	}
}

func TestSendMessageErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			err := c.SendMessage(context.Background(), "15551234567", "hello")
			var delivErr *models.DeliveryError
			if !errors.As(err, &delivErr) {
				t.Fatalf("expected DeliveryError, got %T: %v", err, err)
			}
			if delivErr.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", delivErr.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestSendMessageEmptyRecipient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the server")
	})

	err := c.SendMessage(context.Background(), "", "hello")
	if !errors.Is(err, models.ErrEmptyRecipient) {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}
}

const sampleWebhook = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [
          {"id": "wamid.text1", "from": "15551234567", "timestamp": "1756000000", "type": "text", "text": {"body": "空港まで行ってください"}},
          {"id": "wamid.image1", "from": "15551234567", "timestamp": "1756000001", "type": "image"}
        ],
        "statuses": [
          {"id": "wamid.out1", "recipient_id": "15551234567", "status": "delivered", "timestamp": "1756000002"}
        ]
      }
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	messages, receipts, err := ParseWebhook([]byte(sampleWebhook))
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}

	if len(messages) != 1 {
		t.Fatalf("expected 1 text message (image skipped), got %d", len(messages))
	}
	msg := messages[0]
	if msg.ID != "wamid.text1" {
		t.Errorf("ID = %q, want wamid.text1", msg.ID)
	}
	if msg.From != "+15551234567" {
		t.Errorf("From = %q, want +15551234567", msg.From)
	}
	if msg.Body != "空港まで行ってください" {
		t.Errorf("Body = %q", msg.Body)
	}
	if msg.Time != 1756000000 {
		t.Errorf("Time = %d, want 1756000000", msg.Time)
	}

	if len(receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(receipts))
	}
	if receipts[0].Status != models.MessageStatusDelivered {
		t.Errorf("receipt status = %q, want delivered", receipts[0].Status)
	}
}

func TestParseWebhookRejectsWrongObject(t *testing.T) {
	_, _, err := ParseWebhook([]byte(`{"object": "page", "entry": []}`))
	if err == nil {
		t.Error("expected error for non-whatsapp webhook object")
	}
}

func TestParseWebhookMalformed(t *testing.T) {
	_, _, err := ParseWebhook([]byte(`{not json`))
	if err == nil {
		t.Error("expected error for malformed payload")
	}
}
