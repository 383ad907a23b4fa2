// Package ingest imports curricula from spreadsheets. A teacher uploads a
// sheet, previews how its columns map onto lesson fields and the per-row
// validation report, then commits the valid sheet as subjects and lessons.
package ingest

import (
	"strings"
	"unicode"
)

type Field string

const (
	FieldSubject    Field = "subject"
	FieldOrder      Field = "order"
	FieldTitle      Field = "title"
	FieldHomework   Field = "homework"
	FieldGrade      Field = "grade"
	FieldDifficulty Field = "difficulty"
	FieldResource   Field = "resource"
	FieldTest       Field = "test"
)

// Fields is the canonical field order. AutoMap assigns columns in this
// order, so an ambiguous header goes to the earlier field.
var Fields = []Field{
	FieldSubject, FieldOrder, FieldTitle, FieldHomework,
	FieldGrade, FieldDifficulty, FieldResource, FieldTest,
}

// aliases are normalized header spellings, Uzbek first.
var aliases = map[Field][]string{
	FieldSubject:    {"fan", "subject", "dars", "subjectname", "fannomi", "modul", "modulnomi"},
	FieldOrder:      {"tartib", "order", "nomer", "number", "№", "pos", "index", "no"},
	FieldTitle:      {"mavzu", "topic", "lesson", "title", "tema", "darsnomi", "darssarlavhasi"},
	FieldHomework:   {"uygavazifa", "uyvazifa", "homework", "vazifa", "task", "vazifalar"},
	FieldGrade:      {"sinf", "class", "grade", "level", "group"},
	FieldDifficulty: {"daraja", "difficulty", "qiyinchilik", "qiyinchilikdarajasi"},
	FieldResource:   {"resurs", "resource", "havola", "link", "video", "pdf", "resurshavolasi"},
	FieldTest:       {"test", "savol", "savollar", "testsavollari", "question", "questions"},
}

// Mapping assigns a header, as it appears in the sheet, to each field.
type Mapping map[Field]string

func ValidField(f string) bool {
	_, ok := aliases[Field(f)]
	return ok
}

// NormalizeHeader folds a header for alias lookup: lower case with
// whitespace, underscores, hyphens, dots and apostrophes removed.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch {
		case unicode.IsSpace(r):
		case r == '_' || r == '-' || r == '.' || r == '\'' || r == '`' || r == '‘' || r == '’' || r == 'ʻ' || r == 'ʼ':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AutoMap guesses the mapping from headers. For each field the first column
// whose normalized header is a known alias wins; failing that, the first
// column whose header contains the field's Uzbek name. A column is assigned
// to at most one field.
func AutoMap(headers []string) Mapping {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = NormalizeHeader(h)
	}
	used := make([]bool, len(headers))
	m := Mapping{}

	assign := func(f Field, match func(string) bool) bool {
		for i, n := range norm {
			if used[i] || n == "" || !match(n) {
				continue
			}
			used[i] = true
			m[f] = headers[i]
			return true
		}
		return false
	}
	for _, f := range Fields {
		set := aliases[f]
		if assign(f, func(n string) bool { return contains(set, n) }) {
			continue
		}
		stem := set[0]
		assign(f, func(n string) bool { return strings.Contains(n, stem) })
	}
	return m
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

var difficultyAliases = map[string]string{
	"boshlangich":  "beginner",
	"boshlanish":   "beginner",
	"beginner":     "beginner",
	"easy":         "beginner",
	"oson":         "beginner",
	"orta":         "intermediate",
	"intermediate": "intermediate",
	"medium":       "intermediate",
	"yuqori":       "advanced",
	"qiyin":        "advanced",
	"advanced":     "advanced",
	"hard":         "advanced",
}

// NormalizeDifficulty maps a difficulty cell onto beginner, intermediate or
// advanced. ok is false for an unrecognized non-empty value.
func NormalizeDifficulty(v string) (level string, ok bool) {
	key := NormalizeHeader(v)
	if key == "" {
		return "", true
	}
	level, ok = difficultyAliases[key]
	return level, ok
}
