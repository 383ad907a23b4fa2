package questionjson

import (
	"github.com/tidwall/gjson"

	"github.com/mind-engage/skillway/internal/content"
)

const DiagnosticPerSubject = 3

// Section holds the diagnostic questions generated for one subject.
// Question.Difficulty carries the question's level.
type Section struct {
	Subject   string
	Questions []content.Question
}

// ParseDiagnostic extracts the per-subject diagnostic questions in the
// order the model listed the subjects. Subjects without a question list are
// skipped.
func ParseDiagnostic(raw string) ([]Section, error) {
	text, _, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := validateShape(diagnosticSchema, text); err != nil {
		return nil, err
	}

	var out []Section
	gjson.Get(text, "subjects").ForEach(func(name, subj gjson.Result) bool {
		qs := subj.Get("questions")
		if !qs.IsArray() {
			return true
		}
		items := qs.Array()
		if len(items) > DiagnosticPerSubject {
			items = items[:DiagnosticPerSubject]
		}
		sec := Section{Subject: name.String(), Questions: make([]content.Question, 0, len(items))}
		for _, it := range items {
			q := normalize(it, DefaultDifficulty)
			if it.IsObject() {
				q.Difficulty = stringOr(it.Get("level"), DefaultDifficulty)
			}
			sec.Questions = append(sec.Questions, q)
		}
		out = append(out, sec)
		return true
	})
	if len(out) == 0 {
		return nil, ErrEmptyGeneration
	}
	return out, nil
}
