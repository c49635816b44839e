package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/metacloud"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// CloudService implements Service using the Meta WhatsApp Cloud API. Inbound
// messages arrive through the Graph API webhook; the API layer parses the
// payload and feeds the results through EnqueueInbound.
type CloudService struct {
	client   *metacloud.Client
	messages chan models.InboundMessage
	receipts chan models.Receipt
	done     chan struct{}
	mu       sync.RWMutex
	stopped  bool
}

var _ Service = (*CloudService)(nil)

// NewCloudService creates a new CloudService wrapping the given Cloud API client.
func NewCloudService(client *metacloud.Client) *CloudService {
	return &CloudService{
		client:   client,
		messages: make(chan models.InboundMessage, DefaultChannelBufferSize),
		receipts: make(chan models.Receipt, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
func (s *CloudService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneNumber(recipient)
}

// Start is a no-op for the Cloud API; inbound traffic arrives via webhook.
func (s *CloudService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *CloudService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.messages)
		close(s.receipts)
	}()

	return nil
}

// SendMessage sends a message through the Cloud API and emits a sent receipt.
func (s *CloudService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return models.NewDeliveryError(models.ErrServiceStopped, false)
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudService SendMessage validation error", "error", err, "to", to)
		return models.NewDeliveryError(err, false)
	}

	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}

	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Messages returns the channel of inbound messages fed by the webhook handler.
func (s *CloudService) Messages() <-chan models.InboundMessage {
	return s.messages
}

// Receipts returns the channel of receipt events.
func (s *CloudService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// EnqueueInbound feeds webhook-parsed inbound messages and receipts into the
// service channels. Called by the API layer after metacloud.ParseWebhook.
func (s *CloudService) EnqueueInbound(messages []models.InboundMessage, receipts []models.Receipt) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("CloudService dropping webhook payload (service stopped)", "messages", len(messages))
		return
	}

	for _, msg := range messages {
		select {
		case s.messages <- msg:
			slog.Debug("CloudService emitted inbound message", "message_id", msg.ID, "from", msg.From)
		case <-time.After(DefaultChannelTimeout):
			slog.Warn("CloudService messages channel blocked, dropping message", "message_id", msg.ID, "from", msg.From)
		}
	}
	for _, receipt := range receipts {
		s.emitReceipt(receipt)
	}
}

func (s *CloudService) emitReceipt(receipt models.Receipt) {
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("CloudService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}
