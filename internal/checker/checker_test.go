package checker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/ledger"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/unit"
)

func TestIsTranslationValid(t *testing.T) {
	tests := []struct {
		name       string
		original   string
		translated string
		srcLang    string
		dstLang    string
		want       bool
	}{
		{"empty translation", "Hello", "", "en", "zh", false},
		{"whitespace translation", "Hello", "   ", "en", "zh", false},
		{"latin echo", "Hello", "Hello", "en", "fr", false},
		{"chinese echo", "你好世界", "你好世界", "zh", "en", false},
		{"numeric identity under chinese source", "1234", "1234", "zh", "en", true},
		{"target script missing", "Hello", "Bonjour", "en", "zh", false},
		{"target script present", "Hello", "你好", "en", "zh", true},
		{"latin pair translated", "Hello", "Bonjour", "en", "fr", true},
		{"japanese target with kana", "Hello", "こんにちは", "en", "ja", true},
		{"japanese target without script", "Hello", "konnichiwa", "en", "ja", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsTranslationValid(tt.original, tt.translated, tt.srcLang, tt.dstLang)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsScript(t *testing.T) {
	assert.True(t, ContainsScript("你好", "zh"))
	assert.False(t, ContainsScript("hello", "zh"))
	assert.True(t, ContainsScript("안녕하세요", "ko"))
	assert.True(t, ContainsScript("Привет", "ru"))
	assert.False(t, ContainsScript("anything", "xx"))
}

func TestIsNonLatin(t *testing.T) {
	assert.True(t, IsNonLatin("zh"))
	assert.True(t, IsNonLatin("ja"))
	assert.False(t, IsNonLatin("en"))
	assert.False(t, IsNonLatin("fr"))
}

func TestDetectSourceLang(t *testing.T) {
	assert.Equal(t, "zh", DetectSourceLang([]string{"今天天气真好，我们一起去公园散步吧。"}))
	assert.Equal(t, "en", DetectSourceLang(nil))
	assert.Equal(t, "en", DetectSourceLang([]string{"  "}))
}

func TestCleanJSON(t *testing.T) {
	fenced := "```json\n{\"1\": \"a\",}\n```"
	assert.Equal(t, `{"1": "a"}`, CleanJSON(fenced))

	assert.Equal(t, `["a"]`, CleanJSON(`["a",]`))
	assert.Equal(t, `{"1": "a"}`, CleanJSON("\uFEFF{\"1\": \"a\"}"))
}

func TestParseSegment(t *testing.T) {
	m, err := ParseSegment("```json\n{\n    \"1\": \"Hello\",\n    \"2\": \"World\"\n}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Hello", "2": "World"}, m)

	_, err = ParseSegment("not json at all")
	assert.Error(t, err)
}

func newTestChecker(t *testing.T, srcLang, dstLang string, echoFirstAttemptPass bool, units []unit.SplitUnit) (*Checker, *ledger.ResultLedger, *ledger.FailureLedger, string) {
	t.Helper()
	dir := t.TempDir()
	splitPath := filepath.Join(dir, unit.SplitFile)
	require.NoError(t, unit.Save(splitPath, units))

	results := ledger.NewResult(filepath.Join(dir, unit.ResultFile))
	failures := ledger.NewFailure(filepath.Join(dir, unit.FailedFile))
	c := New(srcLang, dstLang, splitPath, results, failures, echoFirstAttemptPass)
	return c, results, failures, splitPath
}

func twoUnitSplit() []unit.SplitUnit {
	return []unit.SplitUnit{
		{CountSrc: 1, CountDeduped: 1, CountSplit: 1, Value: "Hello", Type: "text", Chunk: "1/1"},
		{CountSrc: 2, CountDeduped: 2, CountSplit: 2, Value: "World", Type: "text", Chunk: "1/1"},
	}
}

func TestProcessResultsPartitionsAcceptedAndRejected(t *testing.T) {
	c, results, failures, splitPath := newTestChecker(t, "en", "zh", true, twoUnitSplit())

	got := c.ProcessResults(
		`{"1": "Hello", "2": "World"}`,
		`{"1": "你好", "2": "World"}`,
		false,
	)

	assert.Equal(t, map[int]string{1: "你好"}, got)

	accepted := results.Load()
	require.Len(t, accepted, 1)
	assert.Equal(t, "你好", accepted[0].Translated)

	rejected := failures.Load()
	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].CountSplit.Int())
	assert.Equal(t, "World", rejected[0].Value)

	splitData, err := unit.Load[unit.SplitUnit](splitPath)
	require.NoError(t, err)
	assert.True(t, splitData[0].TranslatedStatus)
	assert.False(t, splitData[1].TranslatedStatus)
}

func TestProcessResultsWholeEchoFirstAttemptSurfacesContent(t *testing.T) {
	c, results, failures, _ := newTestChecker(t, "en", "zh", true, twoUnitSplit())
	payload := `{"1": "Hello", "2": "World"}`

	got := c.ProcessResults(payload, payload, false)

	assert.Equal(t, map[int]string{1: "Hello", 2: "World"}, got)
	assert.Empty(t, results.Load())
	assert.True(t, failures.ContainsAll([]int{1, 2}))
}

func TestProcessResultsWholeEchoRepeatFails(t *testing.T) {
	c, _, failures, _ := newTestChecker(t, "en", "zh", true, twoUnitSplit())
	payload := `{"1": "Hello", "2": "World"}`

	require.NotNil(t, c.ProcessResults(payload, payload, false))
	got := c.ProcessResults(payload, payload, false)

	assert.Nil(t, got)
	assert.Len(t, failures.Load(), 2)
}

func TestProcessResultsWholeEchoDisabled(t *testing.T) {
	c, _, failures, _ := newTestChecker(t, "en", "zh", false, twoUnitSplit())
	payload := `{"1": "Hello", "2": "World"}`

	got := c.ProcessResults(payload, payload, false)

	assert.Nil(t, got)
	assert.Len(t, failures.Load(), 2)
}

func TestProcessResultsLastTryAcceptsAnything(t *testing.T) {
	c, results, failures, _ := newTestChecker(t, "en", "zh", true, twoUnitSplit())

	got := c.ProcessResults(
		`{"1": "Hello", "2": "World"}`,
		`{"1": "Hello", "2": "World"}`,
		true,
	)

	assert.Equal(t, map[int]string{1: "Hello", 2: "World"}, got)
	assert.Len(t, results.Load(), 2)
	assert.True(t, failures.IsEmpty())
}

func TestProcessResultsEmptyResponse(t *testing.T) {
	c, _, failures, _ := newTestChecker(t, "en", "zh", true, twoUnitSplit())

	got := c.ProcessResults(`{"1": "Hello", "2": "World"}`, "   ", false)

	assert.Nil(t, got)
	assert.Len(t, failures.Load(), 2)
}

func TestProcessResultsUnparseableResponse(t *testing.T) {
	c, _, failures, _ := newTestChecker(t, "en", "zh", true, twoUnitSplit())

	got := c.ProcessResults(`{"1": "Hello", "2": "World"}`, "sorry, I cannot help", false)

	assert.Nil(t, got)
	assert.Len(t, failures.Load(), 2)
}

func TestMarkSegmentFailed(t *testing.T) {
	c, _, failures, _ := newTestChecker(t, "en", "zh", true, twoUnitSplit())

	c.MarkSegmentFailed(`{"1": "Hello", "2": "World"}`)

	entries := failures.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].CountSplit.Int())
	assert.Equal(t, "World", entries[1].Value)
}

func TestCheckAndSortFillsGapsAndSorts(t *testing.T) {
	dir := t.TempDir()
	splitPath := filepath.Join(dir, unit.SplitFile)
	resultPath := filepath.Join(dir, unit.ResultFile)

	require.NoError(t, unit.Save(splitPath, []unit.SplitUnit{
		{CountSplit: 1, Value: "one"},
		{CountSplit: 2, Value: "two"},
		{CountSplit: 3, Value: "three"},
	}))
	require.NoError(t, unit.Save(resultPath, []unit.ResultEntry{
		{CountSplit: 3, Original: "three", Translated: "三"},
		{CountSplit: 1, Original: "one", Translated: "一"},
	}))

	missing := CheckAndSort(splitPath, resultPath)

	assert.Equal(t, map[int]bool{2: true}, missing)

	sorted, err := unit.Load[unit.ResultEntry](resultPath)
	require.NoError(t, err)
	require.Len(t, sorted, 3)
	assert.Equal(t, 1, sorted[0].CountSplit.Int())
	assert.Equal(t, 2, sorted[1].CountSplit.Int())
	assert.Equal(t, "two", sorted[1].Translated)
	assert.Equal(t, 3, sorted[2].CountSplit.Int())
}

func TestCheckAndSortComplete(t *testing.T) {
	dir := t.TempDir()
	splitPath := filepath.Join(dir, unit.SplitFile)
	resultPath := filepath.Join(dir, unit.ResultFile)

	require.NoError(t, unit.Save(splitPath, []unit.SplitUnit{
		{CountSplit: 1, Value: "one"},
	}))
	require.NoError(t, unit.Save(resultPath, []unit.ResultEntry{
		{CountSplit: 1, Original: "one", Translated: "一"},
	}))

	assert.Empty(t, CheckAndSort(splitPath, resultPath))
}
