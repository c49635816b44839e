// Package compose builds the multi-language reply text from settled
// translation results.
//
// Compose is a pure function: the configured target order fully determines
// the layout, regardless of the order branches finished in. Failed languages
// are rendered with an inline marker instead of being dropped, so partial
// degradation stays visible to the recipient.
package compose

import (
	"strings"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/lang"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
)

// FailureMarker is rendered in place of a translation that permanently failed.
const FailureMarker = "⚠️ translation unavailable"

// Composer renders replies in a fixed target-language order.
type Composer struct {
	targets []string
}

// NewComposer creates a Composer for the given ordered target-language codes.
func NewComposer(targets []string) *Composer {
	// Copy so a caller mutating its slice cannot change reply order later.
	ordered := make([]string, len(targets))
	copy(ordered, targets)
	return &Composer{targets: ordered}
}

// Targets returns the configured target order.
func (c *Composer) Targets() []string {
	return c.targets
}

// Compose builds the reply for original. sourceLang is the normalized detected
// source code, or empty when detection failed. Results may arrive in any
// order; they are matched to targets by language code.
func (c *Composer) Compose(original string, sourceLang string, results []models.TranslationResult) string {
	byLang := make(map[string]models.TranslationResult, len(results))
	for _, res := range results {
		byLang[res.Lang] = res
	}

	var b strings.Builder
	b.WriteString("💬 ")
	b.WriteString(original)
	b.WriteString("\n")
	b.WriteString(sourceLine(sourceLang))

	for _, target := range c.targets {
		b.WriteString("\n")
		b.WriteString(label(target))
		b.WriteString(": ")

		res, ok := byLang[target]
		switch {
		case !ok || res.Err != nil:
			b.WriteString(FailureMarker)
		case res.IsSource:
			// Target matched the detected source language; the original text
			// already is that language.
			b.WriteString(original)
		default:
			b.WriteString(res.Text)
		}
	}

	return b.String()
}

// sourceLine renders the detected-source header.
func sourceLine(sourceLang string) string {
	if sourceLang == "" {
		return "🔍 Detected: unknown\n"
	}
	return "🔍 Detected: " + lang.DisplayName(sourceLang) + " (" + sourceLang + ")\n"
}

// label renders the per-language line prefix, e.g. "🇯🇵 Japanese".
func label(code string) string {
	if l, ok := lang.Get(code); ok {
		return l.Flag + " " + l.Name
	}
	return strings.ToUpper(code)
}
