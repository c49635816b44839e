package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/lang"
)

// OpenAIClient implements Translator using chat completions. It exists for
// deployments without Google Cloud credentials; quality depends on the model.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// Compile-time check that OpenAIClient implements Translator.
var _ Translator = (*OpenAIClient)(nil)

// NewOpenAIClient creates a Translator backed by the OpenAI API.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Detect asks the model for the ISO 639-1 code of the text's language.
func (c *OpenAIClient) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newProviderError(KindInvalidText, errors.New("text is empty"))
	}

	const system = "Identify the language of the user's message. Respond with only the ISO 639-1 language code (use zh-CN or zh-TW for Chinese). No other text."
	code, err := c.complete(ctx, system, text)
	if err != nil {
		return "", err
	}

	code = strings.TrimSpace(code)
	slog.Debug("OpenAIClient detected language", "language", code)
	return code, nil
}

// Translate translates text into the target language.
func (c *OpenAIClient) Translate(ctx context.Context, text string, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newProviderError(KindInvalidText, errors.New("text is empty"))
	}
	if !lang.IsSupported(target) {
		return "", newProviderError(KindUnsupportedLanguage, fmt.Errorf("unsupported target language %q", target))
	}

	system := fmt.Sprintf("Translate the user's message into %s. Respond with only the translation, no commentary.", lang.DisplayName(target))
	translated, err := c.complete(ctx, system, text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(translated), nil
}

// complete runs one chat completion with a system and user message.
func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", normalizeOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", newProviderError(KindUnavailable, errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// normalizeOpenAIErr converts OpenAI SDK errors into ProviderError.
func normalizeOpenAIErr(err error) *ProviderError {
	if pe := classifyContextErr(err); pe != nil {
		return pe
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return newProviderError(classifyStatus(apiErr.StatusCode), err)
	}
	return newProviderError(KindUnavailable, err)
}
