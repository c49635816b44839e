// Package lang provides the supported-language catalog and language code
// normalization for the translation relay.
//
// The catalog maps ISO language codes to display metadata used when composing
// multi-language replies. Detected codes from the translation provider are
// normalized here so the rest of the system only ever sees catalog codes.
package lang

import (
	"fmt"
	"strings"
)

// Language describes one supported target language.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
	Flag   string `json:"flag"`
}

// DefaultTargets is the target-language list used for senders without saved
// preferences.
var DefaultTargets = []string{"ja", "hi", "te"}

// supported is the fixed catalog of languages the relay can translate into.
var supported = map[string]Language{
	// European languages
	"en": {Code: "en", Name: "English", Native: "English", Flag: "🇬🇧"},
	"de": {Code: "de", Name: "German", Native: "Deutsch", Flag: "🇩🇪"},
	"es": {Code: "es", Name: "Spanish", Native: "Español", Flag: "🇪🇸"},
	"fr": {Code: "fr", Name: "French", Native: "Français", Flag: "🇫🇷"},
	"it": {Code: "it", Name: "Italian", Native: "Italiano", Flag: "🇮🇹"},
	"pt": {Code: "pt", Name: "Portuguese", Native: "Português", Flag: "🇵🇹"},
	"ru": {Code: "ru", Name: "Russian", Native: "Русский", Flag: "🇷🇺"},
	"nl": {Code: "nl", Name: "Dutch", Native: "Nederlands", Flag: "🇳🇱"},
	"pl": {Code: "pl", Name: "Polish", Native: "Polski", Flag: "🇵🇱"},
	"tr": {Code: "tr", Name: "Turkish", Native: "Türkçe", Flag: "🇹🇷"},

	// Asian languages
	"ja":    {Code: "ja", Name: "Japanese", Native: "日本語", Flag: "🇯🇵"},
	"ko":    {Code: "ko", Name: "Korean", Native: "한국어", Flag: "🇰🇷"},
	"zh-CN": {Code: "zh-CN", Name: "Chinese (Simplified)", Native: "简体中文", Flag: "🇨🇳"},
	"zh-TW": {Code: "zh-TW", Name: "Chinese (Traditional)", Native: "繁體中文", Flag: "🇹🇼"},
	"th":    {Code: "th", Name: "Thai", Native: "ไทย", Flag: "🇹🇭"},
	"vi":    {Code: "vi", Name: "Vietnamese", Native: "Tiếng Việt", Flag: "🇻🇳"},
	"id":    {Code: "id", Name: "Indonesian", Native: "Bahasa Indonesia", Flag: "🇮🇩"},

	// Indian languages
	"hi": {Code: "hi", Name: "Hindi", Native: "हिन्दी", Flag: "🇮🇳"},
	"te": {Code: "te", Name: "Telugu", Native: "తెలుగు", Flag: "🇮🇳"},
	"ta": {Code: "ta", Name: "Tamil", Native: "தமிழ்", Flag: "🇮🇳"},
	"bn": {Code: "bn", Name: "Bengali", Native: "বাংলা", Flag: "🇧🇩"},
	"ml": {Code: "ml", Name: "Malayalam", Native: "മലയാളം", Flag: "🇮🇳"},
	"kn": {Code: "kn", Name: "Kannada", Native: "ಕನ್ನಡ", Flag: "🇮🇳"},
	"mr": {Code: "mr", Name: "Marathi", Native: "मराठी", Flag: "🇮🇳"},
	"pa": {Code: "pa", Name: "Punjabi", Native: "ਪੰਜਾਬੀ", Flag: "🇮🇳"},
	"gu": {Code: "gu", Name: "Gujarati", Native: "ગુજરાતી", Flag: "🇮🇳"},

	// Other languages
	"ar": {Code: "ar", Name: "Arabic", Native: "العربية", Flag: "🇸🇦"},
}

// IsSupported reports whether code is in the catalog.
func IsSupported(code string) bool {
	_, ok := supported[code]
	return ok
}

// Get returns the catalog entry for code. The second return value reports
// whether the code is supported.
func Get(code string) (Language, bool) {
	l, ok := supported[code]
	return l, ok
}

// DisplayName returns the English display name for code, falling back to the
// upper-cased code for unknown languages.
func DisplayName(code string) string {
	if l, ok := supported[code]; ok {
		return l.Name
	}
	return strings.ToUpper(code)
}

// Codes returns all supported language codes. Order is unspecified.
func Codes() []string {
	codes := make([]string, 0, len(supported))
	for code := range supported {
		codes = append(codes, code)
	}
	return codes
}

// Normalize maps a detected language code onto a catalog code so translate
// calls never fail with a bad language pair.
//
// Rules carried over from production behavior: romanized-script detections
// ("hi-Latn" and friends) are treated as English, Chinese keeps its region
// variant (unknown variants collapse to zh-CN), other regioned codes reduce
// to their base code, and anything still unknown defaults to English.
func Normalize(detected string) string {
	if detected == "" {
		return "en"
	}
	if strings.HasSuffix(detected, "-Latn") {
		return "en"
	}
	if base, _, found := strings.Cut(detected, "-"); found {
		if base == "zh" {
			if detected == "zh-CN" || detected == "zh-TW" {
				return detected
			}
			return "zh-CN"
		}
		detected = base
	}
	if IsSupported(detected) {
		return detected
	}
	return "en"
}

// ParseTargets parses a comma-separated target-language list, validating each
// code against the catalog. Whitespace around codes is ignored and duplicates
// are dropped while preserving first-seen order.
func ParseTargets(list string) ([]string, error) {
	var targets []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(list, ",") {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		if !IsSupported(code) {
			return nil, fmt.Errorf("unsupported target language: %q", code)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		targets = append(targets, code)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no target languages in list %q", list)
	}
	return targets, nil
}
