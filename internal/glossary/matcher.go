package glossary

import (
	"sort"
	"strings"
)

// Match returns the terms whose source form appears in text as an exact
// substring (case-sensitive, which is right for proper nouns). Terms are
// scanned longest-first so a longer term is not shadowed by one of its own
// substrings; each source term appears at most once in the result.
func Match(text string, terms []Term) []Term {
	if len(terms) == 0 || text == "" {
		return nil
	}

	sorted := make([]Term, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Source) > len(sorted[j].Source)
	})

	seen := make(map[string]bool)
	var matched []Term
	for _, term := range sorted {
		if seen[term.Source] {
			continue
		}
		if strings.Contains(text, term.Source) {
			seen[term.Source] = true
			matched = append(matched, term)
		}
	}

	return matched
}

// MergeTerms appends terms from next that are not already present in acc.
func MergeTerms(acc, next []Term) []Term {
	seen := make(map[string]bool, len(acc))
	for _, term := range acc {
		seen[term.Source] = true
	}
	for _, term := range next {
		if !seen[term.Source] {
			seen[term.Source] = true
			acc = append(acc, term)
		}
	}
	return acc
}

// FormatForPrompt renders matched terms as glossary lines for the LLM call.
func FormatForPrompt(terms []Term) string {
	if len(terms) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Glossary:\n")
	for i, term := range terms {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(term.Source + " -> " + term.Target)
	}
	return sb.String()
}
