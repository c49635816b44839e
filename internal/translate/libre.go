package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultLibreTimeout is the HTTP client timeout used when none is configured.
const DefaultLibreTimeout = 10 * time.Second

// LibreClient implements Translator against a LibreTranslate-compatible HTTP
// endpoint. There is no SDK for this protocol; the payloads are the standard
// /translate and /detect shapes.
type LibreClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Compile-time check that LibreClient implements Translator.
var _ Translator = (*LibreClient)(nil)

// NewLibreClient creates a Translator for the LibreTranslate server at
// baseURL. The API key is optional.
func NewLibreClient(baseURL, apiKey string, timeout time.Duration) *LibreClient {
	if timeout <= 0 {
		timeout = DefaultLibreTimeout
	}
	return &LibreClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Detect returns the highest-confidence detection for text.
func (c *LibreClient) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newProviderError(KindInvalidText, errors.New("text is empty"))
	}

	payload := map[string]any{"q": text}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}

	var detections []struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/detect", payload, &detections); err != nil {
		return "", err
	}
	if len(detections) == 0 {
		return "", newProviderError(KindInvalidText, errors.New("no detection returned"))
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	slog.Debug("LibreClient detected language", "language", best.Language, "confidence", best.Confidence)
	return best.Language, nil
}

// Translate translates text into the target language code, letting the server
// auto-detect the source.
func (c *LibreClient) Translate(ctx context.Context, text string, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newProviderError(KindInvalidText, errors.New("text is empty"))
	}

	payload := map[string]any{
		"q":      text,
		"source": "auto",
		"target": target,
		"format": "text",
	}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := c.post(ctx, "/translate", payload, &result); err != nil {
		return "", err
	}
	if strings.TrimSpace(result.TranslatedText) == "" {
		return "", newProviderError(KindInvalidText, errors.New("empty translation returned"))
	}
	return result.TranslatedText, nil
}

// post sends payload to the endpoint and decodes the JSON response into out.
func (c *LibreClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return newProviderError(KindInvalidText, fmt.Errorf("failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return newProviderError(KindInvalidText, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if pe := classifyContextErr(err); pe != nil {
			return pe
		}
		return newProviderError(KindUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := classifyStatus(resp.StatusCode)
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(msg)), "language") {
			kind = KindUnsupportedLanguage
		}
		return newProviderError(kind, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newProviderError(KindUnavailable, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
