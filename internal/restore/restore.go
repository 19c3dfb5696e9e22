package restore

import (
	"sort"
	"strings"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Restore reassembles final per-source translations from the result ledger.
// Split chunks are concatenated in chunk order back into deduped values, then
// fanned out to every source unit that shared that value. Units without a
// usable translation fall back to their original text.
func Restore(results []unit.ResultEntry, srcToDeduped map[int]int, sources []unit.SourceUnit, splits []unit.SplitUnit) []unit.TranslatedUnit {
	// count_split -> translated text, original as fallback for empty values
	translated := make(map[int]string, len(results))
	for _, entry := range results {
		value := entry.Translated
		if strings.TrimSpace(value) == "" {
			value = entry.Original
		}
		translated[entry.CountSplit.Int()] = value
	}

	// count_deduped -> ordered count_split chain; split-file order is chunk order
	chains := make(map[int][]int)
	for _, s := range splits {
		chains[s.CountDeduped] = append(chains[s.CountDeduped], s.CountSplit)
	}

	dedupedText := make(map[int]string, len(chains))
	for countDeduped, chain := range chains {
		var b strings.Builder
		complete := true
		for _, countSplit := range chain {
			piece, ok := translated[countSplit]
			if !ok {
				complete = false
				break
			}
			b.WriteString(piece)
		}
		if complete {
			dedupedText[countDeduped] = b.String()
		}
	}

	missing := 0
	output := make([]unit.TranslatedUnit, 0, len(sources))
	for _, src := range sources {
		countSrc := src.CountSrc.Int()
		value := src.Value

		text, ok := "", false
		if countDeduped, mapped := srcToDeduped[countSrc]; mapped {
			text, ok = dedupedText[countDeduped]
		}
		if !ok || strings.TrimSpace(text) == "" {
			text = value
			missing++
		}

		output = append(output, unit.TranslatedUnit{
			CountSrc:   src.CountSrc,
			Type:       src.Type,
			Original:   value,
			Translated: text,
		})
	}

	sort.Slice(output, func(i, j int) bool {
		return output[i].CountSrc.Int() < output[j].CountSrc.Int()
	})

	if missing > 0 {
		log.Warn("Restored with %d units falling back to original text", missing)
	} else {
		log.Info("Restored %d units", len(output))
	}

	return output
}
