package splitter

import (
	"fmt"
	"strings"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/token"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// DefaultSplitTokens is the per-unit budget used when expanding deduplicated
// units into split units.
const DefaultSplitTokens = 256

// charSliceSafetyMargin shrinks the character-width fallback slice so the
// heuristic very likely stays under budget. The segmenter re-validates token
// counts independently; this margin is not a guarantee.
const charSliceSafetyMargin = 0.9

var sentenceEndings = map[rune]bool{
	'。': true, '！': true, '？': true,
	'!': true, '?': true, '.': true,
	'；': true, ';': true,
}

var internalPunctuation = map[rune]bool{
	'，': true, ',': true,
	'；': true, ';': true,
	'：': true, ':': true,
	'、': true,
}

var trailingMarks = map[rune]bool{
	'"': true, '“': true, '”': true,
	'\'': true, '‘': true, '’': true,
	'）': true, ')': true,
	'】': true, ']': true,
	'』': true, '》': true, '>': true,
}

// doubledPunctuation pairs are collapsed before splitting to avoid spurious
// empty sentences.
var doubledPunctuation = [][2]string{
	{"。。", "。"}, {"！！", "！"}, {"？？", "？"},
	{"!!", "!"}, {"??", "?"}, {"..", "."},
	{"，，", "，"}, {",,", ","},
}

// Splitter divides oversized text values into sub-chunks at sentence and
// clause boundaries so each stays under a token budget. Output chunks are
// fully materialized and concatenate back to the (punctuation-collapsed)
// input exactly, character for character.
type Splitter struct {
	counter *token.Counter
}

func New(counter *token.Counter) *Splitter {
	return &Splitter{counter: counter}
}

// Split divides text into chunks whose token counts stay within maxTokens.
// Priority order: sentence boundaries, then secondary punctuation, then a
// character-width fallback for text with no punctuation at all.
func (s *Splitter) Split(text string, maxTokens int) []string {
	cleaned := collapseDoubledPunctuation(text)
	sentences := cutAt(cleaned, sentenceEndings)

	var chunks []string
	var current strings.Builder
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := s.counter.Count(sentence)

		// A single sentence over budget gets split on secondary punctuation.
		if sentenceTokens > maxTokens {
			if strings.TrimSpace(current.String()) != "" {
				chunks = append(chunks, current.String())
				current.Reset()
				currentTokens = 0
			}
			chunks = append(chunks, s.splitLongSentence(sentence, maxTokens)...)
			continue
		}

		if currentTokens+sentenceTokens > maxTokens && strings.TrimSpace(current.String()) != "" {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(sentence)
			currentTokens = sentenceTokens
		} else {
			current.WriteString(sentence)
			currentTokens += sentenceTokens
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// splitLongSentence splits a sentence on internal punctuation, falling back
// to character slicing for fragments with no punctuation at all.
func (s *Splitter) splitLongSentence(sentence string, maxTokens int) []string {
	if s.counter.Count(sentence) <= maxTokens {
		return []string{sentence}
	}

	fragments := cutAt(sentence, internalPunctuation)

	var packed []string
	var current strings.Builder
	currentTokens := 0

	for _, fragment := range fragments {
		fragmentTokens := s.counter.Count(fragment)
		if currentTokens+fragmentTokens > maxTokens && strings.TrimSpace(current.String()) != "" {
			packed = append(packed, current.String())
			current.Reset()
			current.WriteString(fragment)
			currentTokens = fragmentTokens
		} else {
			current.WriteString(fragment)
			currentTokens += fragmentTokens
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		packed = append(packed, current.String())
	}

	// Fragments still over budget (no punctuation at all) get sliced by
	// character width, sized from the observed chars-per-token ratio.
	var final []string
	for _, chunk := range packed {
		chunkTokens := s.counter.Count(chunk)
		if chunkTokens <= maxTokens {
			final = append(final, chunk)
			continue
		}

		runes := []rune(chunk)
		charsPerToken := 1.0
		if chunkTokens > 0 {
			charsPerToken = float64(len(runes)) / float64(chunkTokens)
		}
		charsPerChunk := int(float64(maxTokens) * charsPerToken * charSliceSafetyMargin)
		if charsPerChunk < 1 {
			charsPerChunk = 1
		}

		for start := 0; start < len(runes); start += charsPerChunk {
			end := start + charsPerChunk
			if end > len(runes) {
				end = len(runes)
			}
			final = append(final, string(runes[start:end]))
		}
	}

	return final
}

// cutAt divides text after each boundary rune, keeping trailing closing
// quotes/brackets and following spaces attached to the preceding piece.
func cutAt(text string, boundaries map[rune]bool) []string {
	runes := []rune(text)

	var pieces []string
	var current strings.Builder

	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		if !boundaries[runes[i]] {
			continue
		}

		j := i + 1
		for j < len(runes) && trailingMarks[runes[j]] {
			current.WriteRune(runes[j])
			j++
		}
		for j < len(runes) && runes[j] == ' ' {
			current.WriteRune(runes[j])
			j++
		}

		if strings.TrimSpace(current.String()) != "" {
			pieces = append(pieces, current.String())
		}
		current.Reset()
		i = j - 1
	}

	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, current.String())
	}

	return pieces
}

func collapseDoubledPunctuation(text string) string {
	for _, pair := range doubledPunctuation {
		for strings.Contains(text, pair[0]) {
			text = strings.ReplaceAll(text, pair[0], pair[1])
		}
	}
	return text
}

// SplitUnits expands deduplicated units into split units under maxTokens.
// CountSplit values are assigned sequentially from 1 across the whole output
// in input order; a unit within budget becomes a single "1/1" chunk.
func (s *Splitter) SplitUnits(deduped []unit.DedupedUnit, maxTokens int) []unit.SplitUnit {
	if maxTokens <= 0 {
		maxTokens = DefaultSplitTokens
	}

	result := make([]unit.SplitUnit, 0, len(deduped))
	nextCountSplit := 1

	for _, item := range deduped {
		tokens := 0
		if item.Value != "" {
			tokens = s.counter.Count(item.Value)
		}

		if tokens <= maxTokens {
			result = append(result, unit.SplitUnit{
				CountSrc:         item.CountSrc,
				CountDeduped:     item.CountDeduped,
				CountSplit:       nextCountSplit,
				Value:            item.Value,
				Type:             item.Type,
				Chunk:            "1/1",
				TranslatedStatus: false,
			})
			nextCountSplit++
			continue
		}

		chunks := s.Split(item.Value, maxTokens)
		if len(chunks) == 0 {
			chunks = []string{item.Value}
		}

		for i, chunkText := range chunks {
			result = append(result, unit.SplitUnit{
				CountSrc:         item.CountSrc,
				CountDeduped:     item.CountDeduped,
				CountSplit:       nextCountSplit,
				Value:            chunkText,
				Type:             item.Type,
				Chunk:            fmt.Sprintf("%d/%d", i+1, len(chunks)),
				TranslatedStatus: false,
			})
			nextCountSplit++
		}
	}

	log.Info("Split result: %d -> %d items", len(deduped), len(result))
	return result
}
