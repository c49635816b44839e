package metacloud

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// WebhookPayload mirrors the Graph API webhook envelope for WhatsApp Business
// Account events.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []WebhookMessage `json:"messages"`
	Statuses         []WebhookStatus  `json:"statuses"`
}

type WebhookMessage struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *WebhookText `json:"text"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// ParseWebhook extracts inbound text messages and delivery statuses from one
// webhook payload. Non-text messages are skipped; Meta redelivers the whole
// envelope on failures, so the extracted message ids feed the dedup claim.
func ParseWebhook(body []byte) ([]models.InboundMessage, []models.Receipt, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if payload.Object != "whatsapp_business_account" {
		return nil, nil, fmt.Errorf("unexpected webhook object %q", payload.Object)
	}

	var messages []models.InboundMessage
	var receipts []models.Receipt
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				from := msg.From
				if from != "" && from[0] != '+' {
					from = "+" + from
				}
				messages = append(messages, models.InboundMessage{
					ID:   msg.ID,
					From: from,
					Body: msg.Text.Body,
					Time: parseTimestamp(msg.Timestamp),
				})
			}
			for _, st := range change.Value.Statuses {
				status, ok := parseStatus(st.Status)
				if !ok {
					continue
				}
				receipts = append(receipts, models.Receipt{
					To:     "+" + st.RecipientID,
					Status: status,
					Time:   parseTimestamp(st.Timestamp),
				})
			}
		}
	}
	return messages, receipts, nil
}

// parseTimestamp converts the Graph API's string Unix timestamp. A malformed
// value yields zero rather than an error; the timestamp is informational.
func parseTimestamp(s string) int64 {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

func parseStatus(s string) (models.MessageStatus, bool) {
	switch s {
	case "sent":
		return models.MessageStatusSent, true
	case "delivered":
		return models.MessageStatusDelivered, true
	case "read":
		return models.MessageStatusRead, true
	default:
		return "", false
	}
}
