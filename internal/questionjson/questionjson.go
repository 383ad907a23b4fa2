// Package questionjson turns free-form LLM output into validated
// multiple-choice questions.
//
// Model output is unreliable: it arrives wrapped in markdown fences, prefixed
// with chatter, with trailing commas, or with fields in the wrong shape.
// Parse strips the wrapping, repairs what can be repaired, checks the top
// level against a JSON Schema and then normalizes every question so the
// stored bank always satisfies 0 <= correct < len(options) == 4.
package questionjson

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/mind-engage/skillway/internal/content"
)

var (
	// ErrMalformedResponse means the text is not JSON even after repair.
	ErrMalformedResponse = errors.New("model response is not valid JSON")
	// ErrEmptyGeneration means the JSON carries no questions.
	ErrEmptyGeneration = errors.New("model response contains no questions")
)

const (
	DefaultMaxQuestions = 5
	DefaultDifficulty   = "medium"
	PlaceholderQuestion = "Savol"
)

var fallbackOptions = []string{"A", "B", "C", "D"}

type options struct {
	maxQuestions int
	difficulty   string
}

type Option func(*options)

// WithMaxQuestions caps the number of questions kept. n <= 0 keeps all.
func WithMaxQuestions(n int) Option { return func(o *options) { o.maxQuestions = n } }

// WithDifficulty sets the difficulty given to questions that carry none.
func WithDifficulty(d string) Option {
	return func(o *options) {
		if d != "" {
			o.difficulty = d
		}
	}
}

type Result struct {
	Questions []content.Question
	// Repaired is set when the text only parsed after trailing-comma removal.
	Repaired bool
}

var (
	fenceOpen     = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose    = regexp.MustCompile("\\s*```$")
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
)

// Clean strips code fences and any text around the outermost object.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "{") {
		if i := strings.IndexByte(text, '{'); i >= 0 {
			text = text[i:]
		}
	}
	if i := strings.LastIndexByte(text, '}'); i >= 0 {
		text = text[:i+1]
	}
	return text
}

// Repair removes trailing commas before a closing bracket or brace.
func Repair(text string) string {
	return trailingComma.ReplaceAllString(text, "$1")
}

// decode runs clean, strict parse and one repair pass.
func decode(raw string) (string, bool, error) {
	text := Clean(raw)
	if gjson.Valid(text) {
		return text, false, nil
	}
	fixed := Repair(text)
	if gjson.Valid(fixed) {
		return fixed, true, nil
	}
	return "", false, ErrMalformedResponse
}

// Parse extracts and normalizes the questions of a generated test.
func Parse(raw string, opts ...Option) (Result, error) {
	o := options{maxQuestions: DefaultMaxQuestions, difficulty: DefaultDifficulty}
	for _, fn := range opts {
		fn(&o)
	}

	text, repaired, err := decode(raw)
	if err != nil {
		return Result{}, err
	}
	if err := validateShape(testSchema, text); err != nil {
		return Result{}, err
	}

	items := gjson.Get(text, "questions").Array()
	if o.maxQuestions > 0 && len(items) > o.maxQuestions {
		items = items[:o.maxQuestions]
	}
	out := make([]content.Question, 0, len(items))
	for _, it := range items {
		out = append(out, normalize(it, o.difficulty))
	}
	return Result{Questions: out, Repaired: repaired}, nil
}

func normalize(q gjson.Result, difficulty string) content.Question {
	if !q.IsObject() {
		q = gjson.Parse("{}")
	}
	opts := normalizeOptions(q.Get("options"))
	return content.Question{
		Question:    questionText(q.Get("question")),
		Options:     opts,
		Correct:     normalizeCorrect(q.Get("correct"), len(opts)),
		Difficulty:  stringOr(q.Get("difficulty"), difficulty),
		Explanation: stringOr(q.Get("explanation"), ""),
	}
}

func normalizeOptions(r gjson.Result) []string {
	var vals []string
	switch {
	case r.IsArray():
		for _, el := range r.Array() {
			vals = append(vals, el.String())
		}
	case r.IsObject():
		// ForEach walks keys in document order.
		r.ForEach(func(_, v gjson.Result) bool {
			vals = append(vals, v.String())
			return true
		})
	}
	if len(vals) < len(fallbackOptions) {
		return append([]string(nil), fallbackOptions...)
	}
	return vals[:len(fallbackOptions)]
}

func normalizeCorrect(r gjson.Result, n int) int {
	switch r.Type {
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return 0
		}
		c := unicode.ToUpper(rune(s[0]))
		if c >= 'A' && c < 'A'+rune(n) && c <= 'D' {
			return int(c - 'A')
		}
		return 0
	case gjson.Number:
		f := r.Num
		if f != math.Trunc(f) || f < 0 || f >= float64(n) {
			return 0
		}
		return int(f)
	default:
		return 0
	}
}

func questionText(r gjson.Result) string {
	switch {
	case r.Type == gjson.Null, r.Type == gjson.False:
		return PlaceholderQuestion
	case r.Type == gjson.Number && r.Num == 0:
		return PlaceholderQuestion
	}
	if s := strings.TrimSpace(r.String()); s != "" {
		return s
	}
	return PlaceholderQuestion
}

func stringOr(r gjson.Result, def string) string {
	if r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
		return strings.TrimSpace(r.Str)
	}
	return def
}
