package checker

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// scriptPatterns hold the characteristic Unicode ranges per language code.
var scriptPatterns = map[string]*regexp.Regexp{
	// East Asian
	"zh":      regexp.MustCompile(`[\x{4e00}-\x{9fff}]`),
	"zh-Hant": regexp.MustCompile(`[\x{4e00}-\x{9fff}\x{3400}-\x{4dbf}]`),
	"ja":      regexp.MustCompile(`[\x{3040}-\x{309f}\x{30a0}-\x{30ff}\x{4e00}-\x{9faf}]`),
	"ko":      regexp.MustCompile(`[\x{ac00}-\x{d7af}\x{1100}-\x{11ff}]`),

	// Other scripts
	"ru": regexp.MustCompile(`[\x{0400}-\x{04FF}]`),
	"th": regexp.MustCompile(`[\x{0e00}-\x{0e7f}]`),
	"vi": regexp.MustCompile(`[\x{00C0}-\x{1EF9}]`),
}

// nonLatinLangs are the languages whose translations are gated on script
// presence: an identical echo of such a source is a failed translation, and
// target output lacking the script entirely never materialized.
var nonLatinLangs = map[string]bool{
	"zh": true, "zh-Hant": true, "ja": true, "ko": true, "ru": true, "th": true,
}

// ContainsScript reports whether text contains characters characteristic of
// the given language. Unknown languages report false.
func ContainsScript(text, langCode string) bool {
	pattern, ok := scriptPatterns[langCode]
	if !ok {
		return false
	}
	return pattern.MatchString(text)
}

// IsNonLatin reports whether the language is in the script-gated set.
func IsNonLatin(langCode string) bool {
	return nonLatinLangs[langCode]
}

// DetectSourceLang resolves an "auto" source language from a sample of unit
// values. Falls back to "en" when detection is inconclusive.
func DetectSourceLang(values []string) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(v)
		sb.WriteString(" ")
		if sb.Len() > 4096 {
			break
		}
	}

	sample := strings.TrimSpace(sb.String())
	if sample == "" {
		return "en"
	}

	iso := whatlanggo.DetectLang(sample).Iso6391()
	if iso == "" {
		return "en"
	}
	log.Info("Detected source language: %s", iso)
	return iso
}
