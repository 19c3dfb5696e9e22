package segment

import (
	"encoding/json"
	"strings"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/checker"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/glossary"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/prompt"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/splitter"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/token"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Input is one translatable line headed into segmentation.
type Input struct {
	CountSplit int
	Value      string
	Translated bool
}

// FromSplitUnits adapts split-file entries for segmentation.
func FromSplitUnits(units []unit.SplitUnit) []Input {
	inputs := make([]Input, 0, len(units))
	for _, u := range units {
		inputs = append(inputs, Input{
			CountSplit: u.CountSplit,
			Value:      u.Value,
			Translated: u.TranslatedStatus,
		})
	}
	return inputs
}

// FromFailures adapts failure-ledger entries for a retry round.
func FromFailures(entries []unit.FailureEntry) []Input {
	inputs := make([]Input, 0, len(entries))
	for _, e := range entries {
		inputs = append(inputs, Input{
			CountSplit: e.CountSplit.Int(),
			Value:      e.Value,
		})
	}
	return inputs
}

// Segment is one batch ready for the model: a fenced JSON payload, the
// document progress it represents, and the glossary terms its values matched.
type Segment struct {
	Payload  string
	Progress float64
	Terms    []glossary.Term
}

// Segmenter packs inputs into token-budgeted batches.
type Segmenter struct {
	counter  *token.Counter
	splitter *splitter.Splitter
	terms    []glossary.Term
}

func New(counter *token.Counter, spl *splitter.Splitter, terms []glossary.Term) *Segmenter {
	return &Segmenter{
		counter:  counter,
		splitter: spl,
		terms:    terms,
	}
}

// Build packs the inputs into segments whose line payloads fit within
// maxToken minus the prompt overhead. Lines already translated are skipped
// when skipTranslated is set (resumed runs). Lines whose single-entry JSON
// exceeds the budget are re-split by sentence and emitted as standalone
// segments sharing the same unit number.
func (s *Segmenter) Build(inputs []Input, maxToken int, prompts prompt.Set, skipTranslated bool) []Segment {
	budget := s.availableTokens(maxToken, prompts)

	maxCountSplit := 0
	for _, in := range inputs {
		if in.CountSplit > maxCountSplit {
			maxCountSplit = in.CountSplit
		}
	}

	var segments []Segment
	var current []entry
	currentTokens := 0
	var currentTerms []glossary.Term

	flush := func() {
		if len(current) == 0 {
			return
		}
		segments = append(segments, Segment{
			Payload:  fencedPayload(current),
			Progress: progress(current, maxCountSplit),
			Terms:    currentTerms,
		})
		current = nil
		currentTokens = 0
		currentTerms = nil
	}

	for _, in := range inputs {
		value := strings.TrimSpace(in.Value)
		if value == "" {
			continue
		}
		if skipTranslated && in.Translated {
			continue
		}

		line := entry{count: in.CountSplit, value: value}
		lineTokens := s.counter.Count(line.JSON())
		lineTerms := glossary.Match(value, s.terms)

		if lineTokens > budget {
			flush()
			for _, chunk := range s.splitter.Split(value, budget) {
				chunkEntry := entry{count: in.CountSplit, value: chunk}
				if s.counter.Count(chunkEntry.JSON()) > budget {
					log.Warn("Chunk for unit %d still exceeds token budget, sending anyway", in.CountSplit)
				}
				segments = append(segments, Segment{
					Payload:  fencedPayload([]entry{chunkEntry}),
					Progress: progress([]entry{chunkEntry}, maxCountSplit),
					Terms:    lineTerms,
				})
			}
			continue
		}

		if currentTokens+lineTokens > budget {
			flush()
		}

		current = append(current, line)
		currentTokens += lineTokens
		currentTerms = glossary.MergeTerms(currentTerms, lineTerms)
	}

	flush()

	log.Info("Prepared %d segments from %d lines", len(segments), len(inputs))
	return segments
}

// Explode re-cuts segments into single-unit segments for the final retry
// round, so one stubborn unit cannot sink its batch mates.
func Explode(segments []Segment, terms []glossary.Term) []Segment {
	var exploded []Segment
	for _, seg := range segments {
		parsed, err := checker.ParseSegment(seg.Payload)
		if err != nil {
			log.Warn("Failed to re-parse segment for explosion: %v", err)
			exploded = append(exploded, seg)
			continue
		}
		for key, value := range parsed {
			single := entry{count: unit.ParseCount(key), value: value}
			exploded = append(exploded, Segment{
				Payload:  fencedPayload([]entry{single}),
				Progress: seg.Progress,
				Terms:    glossary.Match(value, terms),
			})
		}
	}
	return exploded
}

// availableTokens subtracts prompt overhead from the model budget, falling
// back to half of it when the prompts alone eat everything.
func (s *Segmenter) availableTokens(maxToken int, prompts prompt.Set) int {
	overhead := 0
	for _, p := range []string{prompts.System, prompts.User, prompts.Previous} {
		if p != "" {
			overhead += s.counter.Count(p)
		}
	}

	budget := maxToken - overhead
	if budget <= 0 {
		budget = max(100, maxToken/2)
		log.Warn("Prompt overhead exceeds token budget, falling back to %d tokens per segment", budget)
	}
	return budget
}

type entry struct {
	count int
	value string
}

// JSON renders a single-entry object for token accounting.
func (e entry) JSON() string {
	key, _ := json.Marshal(unit.FormatCount(e.count))
	value, _ := json.Marshal(e.value)
	return "{" + string(key) + ": " + string(value) + "}"
}

// fencedPayload renders a segment as a fenced JSON object with the unit
// numbers in their original order.
func fencedPayload(entries []entry) string {
	var b strings.Builder
	b.WriteString("```json\n{\n")
	for i, e := range entries {
		key, _ := json.Marshal(unit.FormatCount(e.count))
		value, _ := json.Marshal(e.value)
		b.WriteString("    ")
		b.Write(key)
		b.WriteString(": ")
		b.Write(value)
		if i < len(entries)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n```")
	return b.String()
}

// progress reports how far into the document the segment reaches.
func progress(entries []entry, maxCountSplit int) float64 {
	if len(entries) == 0 || maxCountSplit <= 0 {
		return 1.0
	}
	last := 0
	for _, e := range entries {
		if e.count > last {
			last = e.count
		}
	}
	return float64(last) / float64(maxCountSplit)
}
