// Package models defines the core data structures for the translation relay.
//
// It includes types for inbound messages, translation results, relay audit
// records, and delivery/read receipts, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum allowed length for an inbound message body
	MaxMessageBodyLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessageID = errors.New("message id cannot be empty")
	ErrEmptySender    = errors.New("sender cannot be empty")
	ErrEmptyBody      = errors.New("message body cannot be empty")
	ErrBodyTooLong    = errors.New("message body exceeds maximum length")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrNoTargetLangs  = errors.New("at least one target language is required")
	ErrServiceStopped = errors.New("messaging service has been stopped")
)

// InboundMessage represents a single verified inbound chat message handed to
// the relay by a messaging transport. The provider-assigned ID is unique per
// message but may repeat on webhook redelivery; the dedup store absorbs that.
type InboundMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Validate checks that the inbound message carries everything the relay needs.
func (m *InboundMessage) Validate() error {
	if m.ID == "" {
		return ErrEmptyMessageID
	}
	if m.From == "" {
		return ErrEmptySender
	}
	if strings.TrimSpace(m.Body) == "" {
		return ErrEmptyBody
	}
	if len(m.Body) > MaxMessageBodyLength {
		return ErrBodyTooLong
	}
	return nil
}

// TranslationResult is the settled outcome of one fan-out branch. Exactly one
// of Text or Err is meaningful; a failed branch is represented, never omitted.
type TranslationResult struct {
	Lang string `json:"lang"`
	Text string `json:"text,omitempty"`
	// IsSource marks a target that matched the detected source language and
	// was therefore not sent to the provider.
	IsSource bool  `json:"is_source,omitempty"`
	Err      error `json:"-"`
}

// DeliveryError is the normalized failure type for outbound sends. Transport
// packages classify their provider errors into this shape so the relay never
// inspects provider-specific error values.
type DeliveryError struct {
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("transient delivery error: %v", e.Err)
	}
	return fmt.Sprintf("permanent delivery error: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError wraps err with a retryable classification.
func NewDeliveryError(err error, retryable bool) *DeliveryError {
	return &DeliveryError{Retryable: retryable, Err: err}
}

// RelayState tracks an inbound message through the relay state machine.
type RelayState string

const (
	// RelayStateReceived indicates the message was received from the transport.
	RelayStateReceived RelayState = "received"
	// RelayStateClaimed indicates the dedup claim succeeded.
	RelayStateClaimed RelayState = "claimed"
	// RelayStateTranslating indicates the fan-out is in flight.
	RelayStateTranslating RelayState = "translating"
	// RelayStateComposed indicates all branches settled and the reply was built.
	RelayStateComposed RelayState = "composed"
	// RelayStateDelivered is the terminal success state.
	RelayStateDelivered RelayState = "delivered"
	// RelayStateDuplicate is the terminal no-op state for redelivered webhooks.
	RelayStateDuplicate RelayState = "duplicate"
	// RelayStateDeliveryFailed is the terminal state after the outbound retry
	// budget was exhausted.
	RelayStateDeliveryFailed RelayState = "delivery_failed"
)

// IsTerminal reports whether the state ends the relay for a message.
func (s RelayState) IsTerminal() bool {
	switch s {
	case RelayStateDelivered, RelayStateDuplicate, RelayStateDeliveryFailed:
		return true
	default:
		return false
	}
}

// RelayRecord is the audit record persisted for each completed relay attempt.
type RelayRecord struct {
	ID         string     `json:"id"`
	MessageID  string     `json:"message_id"`
	Sender     string     `json:"sender"`
	State      RelayState `json:"state"`
	SourceLang string     `json:"source_lang,omitempty"`
	Error      string     `json:"error,omitempty"`
	Time       int64      `json:"time"`
}

// RelayStats summarizes relay outcomes for the stats endpoint.
type RelayStats struct {
	Delivered      int `json:"delivered"`
	Duplicates     int `json:"duplicates"`
	DeliveryFailed int `json:"delivery_failed"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was handed to the transport.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the transport confirmed delivery.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the recipient read the message.
	MessageStatusRead MessageStatus = "read"
)

// Receipt represents a delivery/read receipt for an outbound reply.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// PreferenceRecord holds a sender's saved target-language list. IsDefault
// marks a sender with no saved preferences whose languages are the configured
// defaults.
type PreferenceRecord struct {
	Sender    string    `json:"sender"`
	Languages []string  `json:"languages"`
	IsDefault bool      `json:"is_default,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
