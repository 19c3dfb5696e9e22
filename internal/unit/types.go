package unit

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel glyphs substituted for literal line breaks by the extractors so
// that unit values survive JSON round-tripping through line-oriented prompts.
// The writer boundary restores them symmetrically.
const (
	SentinelLF = "␊" // ␊ replaces \n
	SentinelCR = "␍" // ␍ replaces \r
)

// Working file names inside a per-document temp directory. Their presence is
// the resume-detection mechanism for continue mode.
const (
	SrcFile        = "src.json"
	DedupedFile    = "src_deduped.json"
	SplitFile      = "src_deduped_split.json"
	ResultFile     = "dst_translated_split.json"
	FailedFile     = "dst_translated_failed.json"
	TranslatedFile = "dst_translated.json"
)

// Count is an integer identity that tolerates JSON string/number drift.
// Extractors occasionally emit count fields as strings; a lenient decode
// beats aborting the whole run over "3" vs 3.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Count(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Count(ParseCount(s))
		return nil
	}
	*c = 0
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(c))
}

func (c Count) Int() int {
	return int(c)
}

var digitsPattern = regexp.MustCompile(`\d+`)

// ParseCount converts a count value arriving as a string to an int.
// Non-numeric input yields 0 rather than an error so that a single malformed
// id cannot poison sorting or lookups.
func ParseCount(value string) int {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if m := digitsPattern.FindString(value); m != "" {
		n, _ := strconv.Atoi(m)
		return n
	}
	return 0
}

// FormatCount renders a count as the string key used in segment payloads.
func FormatCount(n int) string {
	return strconv.Itoa(n)
}

// SourceUnit is one translatable fragment produced by an external extractor.
// Read-only to this core; extra extractor fields are ignored on decode.
type SourceUnit struct {
	CountSrc Count  `json:"count_src"`
	Value    string `json:"value"`
	Type     string `json:"type"`
}

// DedupedUnit is the canonical representative of all SourceUnits sharing an
// identical value. CountSrc keeps the id of the first unit that produced it.
type DedupedUnit struct {
	CountSrc         int    `json:"count_src"`
	CountDeduped     int    `json:"count_deduped"`
	Value            string `json:"value"`
	Type             string `json:"type"`
	TranslatedStatus bool   `json:"translated_status"`
}

// SplitUnit is a DedupedUnit sized to fit a single call's token budget.
// A unit within budget becomes exactly one SplitUnit with Chunk "1/1";
// oversized units expand to N SplitUnits with Chunk "i/N". CountSplit values
// are dense, globally unique and 1-based across the whole split file.
type SplitUnit struct {
	CountSrc         int    `json:"count_src"`
	CountDeduped     int    `json:"count_deduped"`
	CountSplit       int    `json:"count_split"`
	Value            string `json:"value"`
	Type             string `json:"type"`
	Chunk            string `json:"chunk"`
	TranslatedStatus bool   `json:"translated_status"`
}

// ResultEntry is one accepted translation in the result ledger.
type ResultEntry struct {
	CountSplit Count  `json:"count_split"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// FailureEntry is one rejected or failed unit in the failure ledger.
type FailureEntry struct {
	CountSplit Count  `json:"count_split"`
	Value      string `json:"value"`
}

// TranslatedUnit is the final output record consumed by the writers, one per
// original SourceUnit, sorted by CountSrc.
type TranslatedUnit struct {
	CountSrc   Count  `json:"count_src"`
	Type       string `json:"type"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
}
