// Package metacloud wraps the Meta WhatsApp Cloud API (Graph API) for hosted
// business-number deployments.
//
// It covers the two surfaces the relay needs: sending text messages through
// the /{phone_number_id}/messages endpoint, and parsing the webhook payloads
// Meta delivers for inbound messages. No Go SDK exists for this API, so the
// package speaks the Graph API JSON directly.
package metacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// Constants for Meta Cloud API configuration
const (
	// DefaultGraphBaseURL is the Graph API endpoint prefix.
	DefaultGraphBaseURL = "https://graph.facebook.com/v18.0"
	// DefaultHTTPTimeout bounds each Graph API request.
	DefaultHTTPTimeout = 15 * time.Second
)

// Opts holds configuration options for the Cloud API client.
type Opts struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// Option defines a configuration option for the Cloud API client.
type Option func(*Opts)

// WithAccessToken sets the Graph API bearer token.
func WithAccessToken(token string) Option {
	return func(o *Opts) { o.AccessToken = token }
}

// WithPhoneNumberID sets the business phone number id messages are sent from.
func WithPhoneNumberID(id string) Option {
	return func(o *Opts) { o.PhoneNumberID = id }
}

// WithBaseURL overrides the Graph API endpoint, used in tests.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient sets the HTTP client used for Graph API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends messages through the Meta WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
}

// NewClient creates a Cloud API client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: DefaultGraphBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("phone number id must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &Client{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.BaseURL,
		httpClient:    cfg.HTTPClient,
	}, nil
}

// sendRequest is the Graph API /messages request body for a text message.
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// SendMessage sends a text message to the recipient's phone number. Errors
// are classified for the relay's retry layer.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if to == "" {
		return models.NewDeliveryError(models.ErrEmptyRecipient, false)
	}

	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	})
	if err != nil {
		return models.NewDeliveryError(fmt.Errorf("failed to marshal send request: %w", err), false)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return models.NewDeliveryError(fmt.Errorf("failed to build send request: %w", err), false)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("MetaCloud.SendMessage: sending message", "to", to, "body_length", len(body))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request never completed; could be a timeout or DNS failure.
		return models.NewDeliveryError(fmt.Errorf("cloud api request failed: %w", err), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("MetaCloud.SendMessage: cloud api error", "status", resp.StatusCode, "to", to, "body", string(respBody))
		return classifyStatus(resp.StatusCode, string(respBody))
	}

	slog.Debug("MetaCloud.SendMessage: message sent", "to", to)
	return nil
}

// classifyStatus maps Graph API HTTP statuses onto the delivery retry contract.
func classifyStatus(status int, body string) error {
	err := fmt.Errorf("cloud api returned status %d: %s", status, body)
	retryable := status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	return models.NewDeliveryError(err, retryable)
}
