// Package grading scores multiple-choice submissions against the stored key.
package grading

import (
	"errors"
	"math"

	"github.com/tidwall/gjson"

	"github.com/mind-engage/skillway/internal/content"
)

// ErrNotArray means the submitted answers are not a JSON array.
var ErrNotArray = errors.New("answers must be a JSON array")

// Answer is a chosen option index. Nil when the student skipped the
// question or sent something other than an integer.
type Answer *int

// DecodeAnswers parses a submission body. Only integral numbers count as
// answers; strings, fractions, null and nested values never match a key.
func DecodeAnswers(raw []byte) ([]Answer, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrNotArray
	}
	r := gjson.ParseBytes(raw)
	if !r.IsArray() {
		return nil, ErrNotArray
	}
	items := r.Array()
	out := make([]Answer, len(items))
	for i, it := range items {
		if it.Type != gjson.Number || it.Num != math.Trunc(it.Num) {
			continue
		}
		v := int(it.Num)
		out[i] = &v
	}
	return out, nil
}

// Summary is the outcome of grading one submission.
type Summary struct {
	CorrectCount int
	Total        int
	Score        int // percent, 0..100
	Passed       bool
	Correct      []bool // per question
}

type Option func(*config)

type config struct {
	passThreshold int
}

// WithPassThreshold sets the minimum percent that passes. Default 70.
func WithPassThreshold(n int) Option { return func(c *config) { c.passThreshold = n } }

type Grader struct {
	cfg config
}

func NewGrader(opts ...Option) *Grader {
	cfg := config{passThreshold: 70}
	for _, o := range opts {
		o(&cfg)
	}
	return &Grader{cfg: cfg}
}

func (g *Grader) PassThreshold() int { return g.cfg.passThreshold }

// Grade compares answers position by position with the key. Missing
// answers count as wrong; extra answers are ignored.
func (g *Grader) Grade(questions []content.Question, answers []Answer) Summary {
	s := Summary{Total: len(questions), Correct: make([]bool, len(questions))}
	for i, q := range questions {
		if i < len(answers) && answers[i] != nil && *answers[i] == q.Correct {
			s.Correct[i] = true
			s.CorrectCount++
		}
	}
	s.Score = Percent(s.CorrectCount, s.Total)
	s.Passed = s.Score >= g.cfg.passThreshold
	return s
}

// Percent is round(100*correct/total), 0 for an empty test.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
