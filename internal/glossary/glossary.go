package glossary

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"

	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Term is one glossary pair for a fixed source/target language pair.
type Term struct {
	Source string
	Target string
}

// candidateEncodings are attempted in order until one yields a decodable CSV
// with matching language columns. Glossaries come from spreadsheet exports in
// whatever encoding the user's locale favors; GBK also covers GB2312 input.
var candidateEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"utf-8-sig", unicode.UTF8BOM},
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"big5", traditionalchinese.Big5},
	{"latin1", charmap.ISO8859_1},
	{"shift-jis", japanese.ShiftJIS},
	{"cp949", korean.EUCKR},
}

// Load reads glossary terms for the given language pair from a CSV whose
// first row holds language codes and subsequent rows hold per-language terms.
// Returns an empty list when no encoding produces usable entries.
func Load(path, srcLang, dstLang string) ([]Term, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	for _, candidate := range candidateEncodings {
		decoded, err := candidate.enc.NewDecoder().Bytes(raw)
		if err != nil || !utf8.Valid(decoded) {
			continue
		}
		// Decoders substitute U+FFFD for bytes they cannot map; treat that
		// as a failed decode so the next candidate gets a chance.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}

		terms, err := parseCSV(decoded, srcLang, dstLang)
		if err != nil {
			log.Warn("Error loading glossary with %s: %v", candidate.name, err)
			continue
		}
		if len(terms) > 0 {
			log.Info("Loaded %d glossary terms (%s)", len(terms), candidate.name)
			return terms, nil
		}
	}

	return []Term{}, nil
}

func parseCSV(data []byte, srcLang, dstLang string) ([]Term, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	langCodes, err := reader.Read()
	if err != nil {
		return nil, err
	}

	srcIdx, dstIdx := -1, -1
	for i, code := range langCodes {
		if languageMatches(code, srcLang) {
			srcIdx = i
		}
		if languageMatches(code, dstLang) {
			dstIdx = i
		}
	}
	if srcIdx < 0 || dstIdx < 0 {
		return nil, nil
	}

	var terms []Term
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) <= srcIdx || len(row) <= dstIdx {
			continue
		}

		source := strings.TrimSpace(row[srcIdx])
		target := strings.TrimSpace(row[dstIdx])
		if source != "" && target != "" {
			terms = append(terms, Term{Source: source, Target: target})
		}
	}

	return terms, nil
}

// languageMatches compares a CSV column code against a configured language,
// case-insensitively, falling back to base-language comparison so that e.g.
// "zh-CN" columns serve a "zh" run.
func languageMatches(column, lang string) bool {
	column = strings.TrimSpace(column)
	lang = strings.TrimSpace(lang)
	if strings.EqualFold(column, lang) {
		return true
	}

	colTag, errA := language.Parse(column)
	langTag, errB := language.Parse(lang)
	if errA != nil || errB != nil {
		return false
	}
	colBase, _ := colTag.Base()
	langBase, _ := langTag.Base()
	return colBase == langBase
}
