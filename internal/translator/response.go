package translator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

var (
	thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceMarker  = regexp.MustCompile("```json|```")
	objectChunk  = regexp.MustCompile(`(?s)\{.*?\}`)
)

// FixJSONFormat normalizes a model reply to a single valid JSON object.
// Handles reasoning tags, markdown fences, concatenated objects, and falls
// back to wrapping free text so the caller always gets parseable JSON.
// Returns "" only when the reply was empty after stripping markers.
func FixJSONFormat(text string) string {
	text = thinkPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(fenceMarker.ReplaceAllString(text, ""))

	if text == "" {
		log.Error("Model returned empty response")
		return ""
	}

	if json.Valid([]byte(text)) {
		return text
	}

	objects := objectChunk.FindAllString(text, -1)
	if len(objects) == 0 {
		log.Warn("No JSON objects found in response, wrapping text")
		return wrapText(text)
	}

	merged := make(map[string]string)
	for _, objStr := range objects {
		var obj map[string]string
		if err := json.Unmarshal([]byte(objStr), &obj); err != nil {
			log.Warn("Couldn't parse object: %s", objStr)
			continue
		}
		for key, value := range obj {
			merged[key] = value
		}
	}

	if len(merged) == 0 {
		log.Warn("Failed to parse any objects, using fallback")
		return wrapText(text)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return wrapText(text)
	}
	return string(data)
}

func wrapText(text string) string {
	data, err := json.Marshal(map[string]string{"translated_text": text})
	if err != nil {
		return ""
	}
	return string(data)
}
