package checker

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencePattern         = regexp.MustCompile("(?m)^```json\n|\n```$")
	trailingCommaObject  = regexp.MustCompile(`,\s*}`)
	trailingCommaArray   = regexp.MustCompile(`,\s*\]`)
)

// CleanJSON strips markdown fences, a leading BOM and trailing commas from a
// JSON payload so that model output quirks do not fail the parse outright.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "\uFEFF")
	text = fencePattern.ReplaceAllString(text, "")
	text = trailingCommaObject.ReplaceAllString(text, "}")
	text = trailingCommaArray.ReplaceAllString(text, "]")
	return text
}

// ParseSegment decodes a (possibly fenced) segment payload into its
// count_split -> value map.
func ParseSegment(payload string) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(CleanJSON(payload)), &m); err != nil {
		return nil, err
	}
	return m, nil
}
