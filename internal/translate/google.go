package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	gtranslate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleClient implements Translator on top of the Google Cloud Translation
// v2 API.
type GoogleClient struct {
	client *gtranslate.Client
}

// Compile-time check that GoogleClient implements Translator.
var _ Translator = (*GoogleClient)(nil)

// NewGoogleClient creates a Translator backed by Google Cloud Translation.
// Authentication uses the API key when provided, otherwise application
// default credentials.
func NewGoogleClient(ctx context.Context, apiKey string) (*GoogleClient, error) {
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client, err := gtranslate.NewClient(ctx, opts...)
	if err != nil {
		slog.Error("GoogleClient failed to initialize translation client", "error", err)
		return nil, fmt.Errorf("failed to initialize Google translation client: %w", err)
	}
	slog.Info("GoogleClient translation client initialized", "api_key_set", apiKey != "")
	return &GoogleClient{client: client}, nil
}

// Detect returns the most confident detection for text.
func (g *GoogleClient) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newProviderError(KindInvalidText, errors.New("text is empty"))
	}

	detections, err := g.client.DetectLanguage(ctx, []string{text})
	if err != nil {
		return "", normalizeGoogleErr(err)
	}
	if len(detections) == 0 || len(detections[0]) == 0 {
		return "", newProviderError(KindInvalidText, errors.New("no detection returned"))
	}

	best := detections[0][0]
	slog.Debug("GoogleClient detected language", "language", best.Language.String(), "confidence", best.Confidence)
	return best.Language.String(), nil
}

// Translate translates text into the target language code.
func (g *GoogleClient) Translate(ctx context.Context, text string, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newProviderError(KindInvalidText, errors.New("text is empty"))
	}

	tag, err := language.Parse(target)
	if err != nil {
		return "", newProviderError(KindUnsupportedLanguage, fmt.Errorf("invalid target language %q: %w", target, err))
	}

	results, err := g.client.Translate(ctx, []string{text}, tag, nil)
	if err != nil {
		return "", normalizeGoogleErr(err)
	}
	if len(results) == 0 {
		return "", newProviderError(KindInvalidText, errors.New("no translation returned"))
	}

	// The v2 API returns HTML-escaped text by default.
	translated := html.UnescapeString(results[0].Text)
	slog.Debug("GoogleClient translated text", "target", target, "result_length", len(translated))
	return translated, nil
}

// Close releases the underlying API client.
func (g *GoogleClient) Close() error {
	return g.client.Close()
}

// normalizeGoogleErr converts Google API errors into ProviderError.
func normalizeGoogleErr(err error) *ProviderError {
	if pe := classifyContextErr(err); pe != nil {
		return pe
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		kind := classifyStatus(apiErr.Code)
		if apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "language") {
			kind = KindUnsupportedLanguage
		}
		return newProviderError(kind, err)
	}
	// Network-level failures without a status are worth one more attempt.
	return newProviderError(KindUnavailable, err)
}
