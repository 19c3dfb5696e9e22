package prompt

import (
	"fmt"
	"strings"
)

// Set holds the prompt templates for one language pair. The previous default
// seeds the rolling context before any segment has been translated.
type Set struct {
	System          string
	User            string
	Previous        string
	PreviousDefault string
	Glossary        string
}

// Load builds the prompt set for a language pair. The source language may be
// "auto", in which case the model is told to detect it from the content.
func Load(srcLang, dstLang string) Set {
	source := srcLang
	if source == "" || strings.EqualFold(source, "auto") {
		source = "the source language (detect it from the content)"
	}

	var system strings.Builder
	system.WriteString("You are a professional document translation expert. Translate numbered text units from " + source + " to " + dstLang + ".\n\n")
	system.WriteString("=== INPUT FORMAT ===\n")
	system.WriteString("The input is a JSON object mapping unit numbers to text values.\n")
	system.WriteString("Units may contain " + "␊" + " and " + "␍" + " markers standing in for line breaks. Preserve them exactly where they appear.\n")
	system.WriteString("\n=== TRANSLATION GUIDELINES ===\n")
	system.WriteString("1. Translate every unit, keeping its number unchanged\n")
	system.WriteString("2. Preserve placeholders, markers, numbers and formatting codes verbatim\n")
	system.WriteString("3. Keep terminology consistent across units\n")
	system.WriteString("4. Ensure the " + dstLang + " text flows naturally while preserving meaning\n")
	system.WriteString("\n=== OUTPUT FORMAT ===\n")
	system.WriteString("Return ONLY a JSON object with the same keys, values translated to " + dstLang + ".\n")
	system.WriteString("Do not include any explanations, notes, or additional text.\n")

	user := "Translate the following content to " + dstLang + ":\n"

	previous := "For context, the most recent translated units were:\n%s\n"

	previousDefault := "This is the beginning of the document."

	glossary := "Use the following glossary mappings wherever the source term appears:\n%s\n"

	return Set{
		System:          system.String(),
		User:            user,
		Previous:        previous,
		PreviousDefault: previousDefault,
		Glossary:        glossary,
	}
}

// FormatPrevious renders the rolling-context prompt, falling back to the
// default when no prior content exists.
func (s Set) FormatPrevious(previousContent string) string {
	if strings.TrimSpace(previousContent) == "" {
		return s.PreviousDefault
	}
	return fmt.Sprintf(s.Previous, previousContent)
}

// FormatGlossary renders the glossary prompt, or empty when no terms matched.
func (s Set) FormatGlossary(terms string) string {
	if strings.TrimSpace(terms) == "" {
		return ""
	}
	return fmt.Sprintf(s.Glossary, terms)
}
