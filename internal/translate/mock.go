package translate

import "context"

// MockTranslator implements Translator with pluggable functions (for tests).
// Unset functions fall back to identity behavior.
type MockTranslator struct {
	DetectFunc    func(ctx context.Context, text string) (string, error)
	TranslateFunc func(ctx context.Context, text string, target string) (string, error)
}

// Compile-time check that MockTranslator implements Translator.
var _ Translator = (*MockTranslator)(nil)

func (m *MockTranslator) Detect(ctx context.Context, text string) (string, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, text)
	}
	return "en", nil
}

func (m *MockTranslator) Translate(ctx context.Context, text string, target string) (string, error) {
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text, target)
	}
	return "[" + target + "] " + text, nil
}
