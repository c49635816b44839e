// Package translate wraps translation providers behind a single Translator
// interface for the relay.
//
// Provider-specific failures (HTTP status codes, SDK error types, timeouts)
// are normalized into ProviderError so orchestration logic never inspects
// provider error shapes.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Translator is the contract the relay orchestrator depends on.
type Translator interface {
	// Detect returns the provider's language code for text.
	Detect(ctx context.Context, text string) (string, error)

	// Translate translates text into the target language code.
	Translate(ctx context.Context, text string, target string) (string, error)
}

// ErrorKind classifies a normalized provider failure.
type ErrorKind string

const (
	// KindTimeout indicates the provider call exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited indicates the provider rejected the call for quota reasons.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUnavailable indicates a transient provider-side failure (5xx).
	KindUnavailable ErrorKind = "unavailable"
	// KindInvalidText indicates the provider rejected the input text.
	KindInvalidText ErrorKind = "invalid_text"
	// KindUnsupportedLanguage indicates the requested language pair is not supported.
	KindUnsupportedLanguage ErrorKind = "unsupported_language"
)

// ProviderError is the normalized failure type for translation and detection
// calls. Retryable kinds (timeout, rate-limit, 5xx) may be retried by the
// caller; the rest are permanent for the branch that produced them.
type ProviderError struct {
	Kind      ErrorKind
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("translation provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError builds a ProviderError with the retryable flag implied by
// the kind.
func newProviderError(kind ErrorKind, err error) *ProviderError {
	retryable := kind == KindTimeout || kind == KindRateLimited || kind == KindUnavailable
	return &ProviderError{Kind: kind, Retryable: retryable, Err: err}
}

// Retryable reports whether err is a transient provider failure.
func Retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// classifyStatus maps an HTTP status code from a provider onto an ErrorKind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	default:
		return KindInvalidText
	}
}

// classifyContextErr converts context cancellation/deadline errors into a
// ProviderError, or returns nil if err is not a context error.
func classifyContextErr(err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newProviderError(KindTimeout, err)
	}
	return nil
}
