package dedup

import (
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Deduplicate collapses repeated values across the extracted units into a
// canonical set. It returns the deduplicated units in first-seen order plus
// the forward map count_src -> count_deduped covering every input unit.
//
// The function is pure and deterministic: re-running it on the same input
// reconstructs an identical map, which is what lets continue mode rebuild the
// mapping from src.json instead of persisting it.
func Deduplicate(units []unit.SourceUnit) ([]unit.DedupedUnit, map[int]int) {
	valueToDeduped := make(map[string]int)
	srcToDeduped := make(map[int]int, len(units))
	deduped := make([]unit.DedupedUnit, 0, len(units))
	nextCountDeduped := 1

	for _, u := range units {
		countSrc := u.CountSrc.Int()

		countDeduped, seen := valueToDeduped[u.Value]
		if !seen {
			countDeduped = nextCountDeduped
			valueToDeduped[u.Value] = countDeduped
			nextCountDeduped++

			itemType := u.Type
			if itemType == "" {
				itemType = "text"
			}
			deduped = append(deduped, unit.DedupedUnit{
				CountSrc:         countSrc,
				CountDeduped:     countDeduped,
				Value:            u.Value,
				Type:             itemType,
				TranslatedStatus: false,
			})
		}

		srcToDeduped[countSrc] = countDeduped
	}

	duplicates := len(units) - len(deduped)
	log.Info("Deduplication: %d -> %d items", len(units), len(deduped))
	if duplicates > 0 && len(units) > 0 {
		log.Info("Removed %d duplicates (%.1f%% reduction)", duplicates, float64(duplicates)/float64(len(units))*100)
	}

	return deduped, srcToDeduped
}
