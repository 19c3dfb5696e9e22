package ledger

import (
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// ResultLedger persists accepted translations. It accumulates across the
// whole run, initial pass and every retry pass; entries are only appended,
// never overwritten, and get sorted once at the end of the run.
type ResultLedger struct {
	path string
}

func NewResult(path string) *ResultLedger {
	return &ResultLedger{path: path}
}

func (l *ResultLedger) Path() string {
	return l.path
}

// Load returns the current ledger contents, treating a missing or corrupted
// file as empty.
func (l *ResultLedger) Load() []unit.ResultEntry {
	return unit.LoadOrEmpty[unit.ResultEntry](l.path)
}

// Append adds entries to the ledger.
func (l *ResultLedger) Append(entries []unit.ResultEntry) error {
	if len(entries) == 0 {
		return nil
	}
	existing := l.Load()
	existing = append(existing, entries...)
	return unit.Save(l.path, existing)
}

// Replace overwrites the ledger contents, used by the final sort pass.
func (l *ResultLedger) Replace(entries []unit.ResultEntry) error {
	return unit.Save(l.path, entries)
}

// EnsureExists creates an empty ledger file if none is present, so a resumed
// run can measure progress against it.
func (l *ResultLedger) EnsureExists() error {
	if unit.Exists(l.path) {
		return nil
	}
	return unit.Save(l.path, []unit.ResultEntry{})
}

// FailureLedger persists units whose translation was rejected or whose call
// failed after exhausting retries. Appends deduplicate by count_split; the
// ledger is cleared at the start of each retry round before that round's
// outcomes repopulate it.
type FailureLedger struct {
	path string
}

func NewFailure(path string) *FailureLedger {
	return &FailureLedger{path: path}
}

func (l *FailureLedger) Path() string {
	return l.path
}

// Load returns the current ledger contents, treating a missing or corrupted
// file as empty.
func (l *FailureLedger) Load() []unit.FailureEntry {
	return unit.LoadOrEmpty[unit.FailureEntry](l.path)
}

// Append records entries whose count_split is not already present.
func (l *FailureLedger) Append(entries []unit.FailureEntry) error {
	if len(entries) == 0 {
		return nil
	}

	existing := l.Load()
	present := make(map[int]bool, len(existing))
	for _, entry := range existing {
		present[entry.CountSplit.Int()] = true
	}

	added := 0
	for _, entry := range entries {
		countSplit := entry.CountSplit.Int()
		if present[countSplit] {
			continue
		}
		present[countSplit] = true
		existing = append(existing, entry)
		added++
	}

	if added > 0 {
		log.Debug("Recorded %d failed items", added)
	}
	return unit.Save(l.path, existing)
}

// Clear truncates the ledger to an empty list.
func (l *FailureLedger) Clear() error {
	return unit.Save(l.path, []unit.FailureEntry{})
}

// IsEmpty reports whether the ledger holds no entries.
func (l *FailureLedger) IsEmpty() bool {
	return len(l.Load()) == 0
}

// ContainsAll reports whether every given count_split is already recorded.
// The validator uses this to tell a first-attempt echo from a repeated one.
func (l *FailureLedger) ContainsAll(counts []int) bool {
	present := make(map[int]bool)
	for _, entry := range l.Load() {
		present[entry.CountSplit.Int()] = true
	}
	for _, c := range counts {
		if !present[c] {
			return false
		}
	}
	return true
}
