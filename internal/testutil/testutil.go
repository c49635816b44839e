// Package testutil provides common test utilities and helpers for the
// translation relay tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/api"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/messaging"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/relay"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/store"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/translate"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/twiliowhatsapp"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/whatsapp"
)

// NewTestServer creates a test API server wired to in-memory dependencies.
// The returned store is the one the server uses, so tests can seed and
// inspect it directly.
func NewTestServer(t *testing.T, opts ...api.Option) (*api.Server, store.Store) {
	t.Helper()
	msgService := messaging.NewWhatsAppService(whatsapp.NewMockClient())
	st := store.NewInMemoryStore()
	orchestrator := relay.NewOrchestrator(&translate.MockTranslator{}, msgService, st)
	return api.NewServer(msgService, orchestrator, st, opts...), st
}

// NewTwilioTestServer creates a test API server backed by the Twilio
// transport with a recording mock client.
func NewTwilioTestServer(t *testing.T, opts ...api.Option) (*api.Server, *twiliowhatsapp.MockClient, store.Store) {
	t.Helper()
	mock := twiliowhatsapp.NewMockClient()
	msgService := messaging.NewTwilioService(mock)
	st := store.NewInMemoryStore()
	orchestrator := relay.NewOrchestrator(&translate.MockTranslator{}, msgService, st)
	return api.NewServer(msgService, orchestrator, st, opts...), mock, st
}

// MockService is a recording messaging.Service for orchestrator and API tests.
type MockService struct {
	mu       sync.Mutex
	sent     []models.InboundMessage // reuse the shape: ID unused, From=to, Body=body
	SendErr  error
	messages chan models.InboundMessage
	receipts chan models.Receipt
}

var _ messaging.Service = (*MockService)(nil)

// NewMockService creates a MockService with buffered channels.
func NewMockService() *MockService {
	return &MockService{
		messages: make(chan models.InboundMessage, messaging.DefaultChannelBufferSize),
		receipts: make(chan models.Receipt, messaging.DefaultChannelBufferSize),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	return recipient, nil
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, models.InboundMessage{From: to, Body: body})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	close(m.messages)
	close(m.receipts)
	return nil
}

func (m *MockService) Messages() <-chan models.InboundMessage { return m.messages }

func (m *MockService) Receipts() <-chan models.Receipt { return m.receipts }

// Inject pushes an inbound message onto the Messages channel.
func (m *MockService) Inject(msg models.InboundMessage) {
	m.messages <- msg
}

// Sent returns a copy of all recorded sends.
func (m *MockService) Sent() []models.InboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.InboundMessage(nil), m.sent...)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedRelays adds sample relay audit records to the store for testing.
func SeedRelays(t *testing.T, st store.Store) {
	t.Helper()

	records := []models.RelayRecord{
		{ID: "rl_1", MessageID: "wamid.1", Sender: "+15551234567", State: models.RelayStateDelivered, SourceLang: "ja", Time: 10},
		{ID: "rl_2", MessageID: "wamid.2", Sender: "+15551234567", State: models.RelayStateDuplicate, Time: 20},
		{ID: "rl_3", MessageID: "wamid.3", Sender: "+15557654321", State: models.RelayStateDeliveryFailed, Error: "gateway unavailable", Time: 30},
	}
	for _, rec := range records {
		if err := st.AddRelay(rec); err != nil {
			t.Fatalf("failed to seed relay record: %v", err)
		}
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
