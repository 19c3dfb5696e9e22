package checker

import (
	"sort"
	"strings"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/ledger"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Checker validates one segment's translation against its original payload,
// partitions units into successes and failures, and keeps the on-disk ledgers
// and split-file status in sync with those decisions.
type Checker struct {
	srcLang   string
	dstLang   string
	splitPath string
	results   *ledger.ResultLedger
	failures  *ledger.FailureLedger

	// echoFirstAttemptPass surfaces a whole-segment echo as a (failing)
	// result on the batch's first attempt, so first-pass content stays
	// visible before the retry loop. Tunable: short units such as numbers
	// or codes are legitimately echoed in some language pairs.
	echoFirstAttemptPass bool
}

func New(srcLang, dstLang, splitPath string, results *ledger.ResultLedger, failures *ledger.FailureLedger, echoFirstAttemptPass bool) *Checker {
	return &Checker{
		srcLang:              srcLang,
		dstLang:              dstLang,
		splitPath:            splitPath,
		results:              results,
		failures:             failures,
		echoFirstAttemptPass: echoFirstAttemptPass,
	}
}

// IsTranslationValid decides whether a single unit's translation is
// acceptable for the given language pair.
func IsTranslationValid(original, translated, srcLang, dstLang string) bool {
	if strings.TrimSpace(translated) == "" {
		return false
	}

	if strings.TrimSpace(translated) == strings.TrimSpace(original) {
		if IsNonLatin(srcLang) {
			// An echo only fails when the source actually carries the
			// script; a numeric-only slice is legitimately identical.
			return !ContainsScript(translated, srcLang)
		}
		return false
	}

	if IsNonLatin(dstLang) && !ContainsScript(translated, dstLang) {
		return false
	}

	return true
}

// ProcessResults validates a translated segment against its original payload.
// Accepted units are appended to the result ledger and marked translated in
// the split file; rejected units go to the failure ledger. The returned map
// (count_split -> translated value) holds what was accepted; an empty map
// signals the caller to treat the attempt as unproductive.
func (c *Checker) ProcessResults(originalSegment, translatedText string, lastTry bool) map[int]string {
	if strings.TrimSpace(translatedText) == "" {
		log.Warn("No translated text received")
		c.markAllFailed(originalSegment)
		return nil
	}

	originalJSON, err := ParseSegment(originalSegment)
	if err != nil {
		log.Warn("Failed to parse original segment: %v", err)
		return nil
	}

	translatedJSON, err := ParseSegment(translatedText)
	if err != nil {
		// Unit-level key alignment cannot be trusted once parsing failed;
		// the whole segment goes back through the retry loop.
		log.Warn("Failed to parse translated segment: %v", err)
		c.markAllFailed(originalSegment)
		return nil
	}

	if !lastTry && segmentsEqual(originalJSON, translatedJSON) {
		return c.handleWholeSegmentEcho(originalSegment, originalJSON)
	}

	keys := sortedKeys(originalJSON)

	var accepted []unit.ResultEntry
	var rejected []unit.FailureEntry
	resultDict := make(map[int]string)

	for _, key := range keys {
		original := originalJSON[key]
		translated := strings.TrimSpace(translatedJSON[key])
		countSplit := unit.ParseCount(key)

		ok := false
		if lastTry {
			// Accept anything non-empty rather than leave it untranslated.
			ok = translated != ""
		} else {
			ok = IsTranslationValid(original, translated, c.srcLang, c.dstLang)
		}

		if ok {
			accepted = append(accepted, unit.ResultEntry{
				CountSplit: unit.Count(countSplit),
				Original:   original,
				Translated: translated,
			})
			resultDict[countSplit] = translated
		} else {
			rejected = append(rejected, unit.FailureEntry{
				CountSplit: unit.Count(countSplit),
				Value:      original,
			})
		}
	}

	log.Info("Segment processed: %d accepted, %d rejected", len(accepted), len(rejected))

	if err := c.results.Append(accepted); err != nil {
		log.Error("Failed to save translation results: %v", err)
	}
	if err := c.failures.Append(rejected); err != nil {
		log.Error("Failed to save failed translations: %v", err)
	}
	if len(accepted) > 0 {
		c.markTranslated(accepted)
	}

	return resultDict
}

// handleWholeSegmentEcho treats a byte-identical segment as a systemic
// failure, with a configurable first-attempt exemption that still surfaces
// the echoed content.
func (c *Checker) handleWholeSegmentEcho(originalSegment string, originalJSON map[string]string) map[int]string {
	counts := make([]int, 0, len(originalJSON))
	for key := range originalJSON {
		counts = append(counts, unit.ParseCount(key))
	}

	firstAttempt := !c.failures.ContainsAll(counts)

	c.markAllFailed(originalSegment)

	if firstAttempt && c.echoFirstAttemptPass {
		log.Info("Model echoed the segment on first attempt, surfacing content before retries")
		echoed := make(map[int]string, len(originalJSON))
		for key, value := range originalJSON {
			echoed[unit.ParseCount(key)] = value
		}
		return echoed
	}

	log.Warn("All translations identical to source, segment marked as failed")
	return nil
}

// MarkSegmentFailed pushes every unit of a segment payload to the failure
// ledger, for callers that gave up on the whole segment.
func (c *Checker) MarkSegmentFailed(originalSegment string) {
	c.markAllFailed(originalSegment)
}

// markAllFailed pushes every unit of a segment payload to the failure ledger.
func (c *Checker) markAllFailed(originalSegment string) {
	originalJSON, err := ParseSegment(originalSegment)
	if err != nil {
		log.Warn("Failed to parse segment for failure ledger: %v", err)
		return
	}

	entries := make([]unit.FailureEntry, 0, len(originalJSON))
	for _, key := range sortedKeys(originalJSON) {
		entries = append(entries, unit.FailureEntry{
			CountSplit: unit.Count(unit.ParseCount(key)),
			Value:      strings.TrimSpace(originalJSON[key]),
		})
	}

	if err := c.failures.Append(entries); err != nil {
		log.Error("Failed to update failure ledger: %v", err)
	}
}

// markTranslated flips translated_status in place for accepted units in the
// split file, which is what lets a resumed run skip them.
func (c *Checker) markTranslated(accepted []unit.ResultEntry) {
	splitData, err := unit.Load[unit.SplitUnit](c.splitPath)
	if err != nil {
		log.Error("Error updating translation status: %v", err)
		return
	}

	acceptedCounts := make(map[int]bool, len(accepted))
	for _, entry := range accepted {
		acceptedCounts[entry.CountSplit.Int()] = true
	}

	updated := 0
	for i := range splitData {
		if acceptedCounts[splitData[i].CountSplit] && !splitData[i].TranslatedStatus {
			splitData[i].TranslatedStatus = true
			updated++
		}
	}

	if err := unit.Save(c.splitPath, splitData); err != nil {
		log.Error("Error updating translation status: %v", err)
		return
	}
	log.Debug("Updated translation status for %d items", updated)
}

// CheckAndSort fills result-ledger gaps with untranslated fallbacks, sorts
// the ledger by count_split and reports which units stayed untranslated.
// The document is always produced; the missing set is the caller's warning.
func CheckAndSort(splitPath, resultPath string) map[int]bool {
	missing := make(map[int]bool)

	splitData, err := unit.Load[unit.SplitUnit](splitPath)
	if err != nil {
		log.Error("Failed to load split file: %v", err)
		return missing
	}

	results := unit.LoadOrEmpty[unit.ResultEntry](resultPath)
	translated := make(map[int]bool, len(results))
	for _, entry := range results {
		translated[entry.CountSplit.Int()] = true
	}

	for _, item := range splitData {
		if !translated[item.CountSplit] {
			missing[item.CountSplit] = true
			results = append(results, unit.ResultEntry{
				CountSplit: unit.Count(item.CountSplit),
				Original:   item.Value,
				Translated: item.Value,
			})
		}
	}

	if len(missing) > 0 {
		log.Warn("Missing translations for %d units", len(missing))
	} else {
		log.Info("No missing translations")
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CountSplit.Int() < results[j].CountSplit.Int()
	})

	if err := unit.Save(resultPath, results); err != nil {
		log.Error("Failed to save sorted results: %v", err)
	}

	return missing
}

func segmentsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if b[key] != value {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return unit.ParseCount(keys[i]) < unit.ParseCount(keys[j])
	})
	return keys
}
