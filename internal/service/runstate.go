package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/llm"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/token"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

const (
	// maxPreviousTokens bounds the rolling context carried between segments.
	maxPreviousTokens = 128
	// maxPreviousItems bounds how many recent units the rolling context keeps.
	maxPreviousItems = 3
	// uiUpdateInterval rate-limits progress callbacks.
	uiUpdateInterval = 100 * time.Millisecond
)

// RunState is the mutable state shared by segment workers: the rolling
// previous-translation context, accumulated token usage and the progress
// callback timestamp. One mutex guards all of it; workers touch it briefly
// between calls, never during one.
type RunState struct {
	mu           sync.Mutex
	previous     map[int]string
	usage        llm.Usage
	lastUIUpdate time.Time
}

func NewRunState() *RunState {
	return &RunState{
		previous: make(map[int]string),
	}
}

// PreviousSnapshot renders the rolling context as numbered lines in unit
// order. Empty when no segment has completed yet.
func (s *RunState) PreviousSnapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.previous) == 0 {
		return ""
	}

	keys := make([]int, 0, len(s.previous))
	for k := range s.previous {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, s.previous[k])
	}
	return strings.Join(lines, "\n")
}

// UpdatePrevious replaces the rolling context with the newest translated
// units, bounded by maxPreviousItems and maxPreviousTokens. A single unit
// that alone exceeds the budget leaves the existing context unchanged, as
// does a batch where nothing fits.
func (s *RunState) UpdatePrevious(results map[int]string, counter *token.Counter) {
	if len(results) == 0 {
		return
	}

	keys := make([]int, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	type item struct {
		key   int
		value string
	}
	valid := make([]item, 0, len(keys))
	for _, k := range keys {
		v := results[k]
		if len(strings.TrimSpace(v)) > 1 {
			valid = append(valid, item{key: k, value: v})
		}
	}
	if len(valid) == 0 {
		return
	}

	if len(valid) > maxPreviousItems {
		valid = valid[len(valid)-maxPreviousItems:]
	}

	total := 0
	for _, it := range valid {
		total += counter.Count(it.value)
	}

	if total > maxPreviousTokens && len(valid) == 1 {
		log.Info("Single paragraph exceeds context token limit: %d > %d", total, maxPreviousTokens)
		return
	}

	if total > maxPreviousTokens {
		kept := make([]item, 0, len(valid))
		current := 0
		for i := len(valid) - 1; i >= 0; i-- {
			tokens := counter.Count(valid[i].value)
			if current+tokens > maxPreviousTokens {
				break
			}
			kept = append([]item{valid[i]}, kept...)
			current += tokens
		}
		if len(kept) == 0 {
			log.Info("Cannot fit any paragraph within context token limit")
			return
		}
		valid = kept
	}

	next := make(map[int]string, len(valid))
	for _, it := range valid {
		next[it.key] = it.value
	}

	s.mu.Lock()
	s.previous = next
	s.mu.Unlock()

	log.Debug("New previous content: %d paragraphs", len(valid))
}

// AddUsage accumulates token usage from one call.
func (s *RunState) AddUsage(u llm.Usage) {
	s.mu.Lock()
	s.usage.Add(u)
	s.mu.Unlock()
}

// Usage returns the accumulated token usage.
func (s *RunState) Usage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// ShouldUpdateUI reports whether enough time has passed since the last
// progress callback, and marks now as the last update when it has.
func (s *RunState) ShouldUpdateUI() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastUIUpdate) < uiUpdateInterval {
		return false
	}
	s.lastUIUpdate = now
	return true
}
