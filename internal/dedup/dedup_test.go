package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
)

func TestDeduplicate(t *testing.T) {
	units := []unit.SourceUnit{
		{CountSrc: 1, Value: "Total", Type: "cell"},
		{CountSrc: 2, Value: "Revenue", Type: "cell"},
		{CountSrc: 3, Value: "Total", Type: "cell"},
		{CountSrc: 4, Value: "Total", Type: "cell"},
		{CountSrc: 5, Value: "Notes", Type: "cell"},
	}

	deduped, mapping := Deduplicate(units)

	require.Len(t, deduped, 3)
	assert.Equal(t, "Total", deduped[0].Value)
	assert.Equal(t, "Revenue", deduped[1].Value)
	assert.Equal(t, "Notes", deduped[2].Value)

	// First-seen order, 1-based dense numbering
	assert.Equal(t, 1, deduped[0].CountDeduped)
	assert.Equal(t, 2, deduped[1].CountDeduped)
	assert.Equal(t, 3, deduped[2].CountDeduped)

	// CountSrc keeps the first occurrence
	assert.Equal(t, 1, deduped[0].CountSrc)

	// Every source unit is mapped
	require.Len(t, mapping, 5)
	assert.Equal(t, 1, mapping[1])
	assert.Equal(t, 1, mapping[3])
	assert.Equal(t, 1, mapping[4])
	assert.Equal(t, 2, mapping[2])
	assert.Equal(t, 3, mapping[5])
}

func TestDeduplicateIsDeterministic(t *testing.T) {
	units := []unit.SourceUnit{
		{CountSrc: 1, Value: "a"},
		{CountSrc: 2, Value: "b"},
		{CountSrc: 3, Value: "a"},
	}

	first, firstMap := Deduplicate(units)
	second, secondMap := Deduplicate(units)

	assert.Equal(t, first, second)
	assert.Equal(t, firstMap, secondMap)
}

func TestDeduplicateEmptyTypeDefaultsToText(t *testing.T) {
	deduped, _ := Deduplicate([]unit.SourceUnit{{CountSrc: 1, Value: "x"}})
	require.Len(t, deduped, 1)
	assert.Equal(t, "text", deduped[0].Type)
}

func TestDeduplicateEmptyInput(t *testing.T) {
	deduped, mapping := Deduplicate(nil)
	assert.Empty(t, deduped)
	assert.Empty(t, mapping)
}

func TestDeduplicateStatusStartsFalse(t *testing.T) {
	deduped, _ := Deduplicate([]unit.SourceUnit{{CountSrc: 1, Value: "x"}})
	assert.False(t, deduped[0].TranslatedStatus)
}
