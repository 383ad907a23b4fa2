package questionjson

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneQuestion = `{"questions":[{"question":"2+2?","options":["3","4","5","6"],"correct":1,"explanation":"sum"}]}`

func TestParseStripsWrapping(t *testing.T) {
	cases := map[string]string{
		"plain":         oneQuestion,
		"json fence":    "```json\n" + oneQuestion + "\n```",
		"bare fence":    "```\n" + oneQuestion + "\n```",
		"upper fence":   "```JSON " + oneQuestion + "```",
		"prose prefix":  "Sure! Here is your test:\n" + oneQuestion,
		"prose suffix":  oneQuestion + "\nGood luck with the lesson.",
		"fence + prose": "```json\nHere: " + oneQuestion + " done\n```",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := Parse(raw)
			require.NoError(t, err)
			require.Len(t, res.Questions, 1)
			q := res.Questions[0]
			assert.Equal(t, "2+2?", q.Question)
			assert.Equal(t, []string{"3", "4", "5", "6"}, q.Options)
			assert.Equal(t, 1, q.Correct)
			assert.Equal(t, "medium", q.Difficulty)
			assert.Equal(t, "sum", q.Explanation)
			assert.False(t, res.Repaired)
		})
	}
}

func TestParseRepairsTrailingCommas(t *testing.T) {
	raw := `{"questions":[{"question":"a","options":["1","2","3","4",],"correct":2,},],}`
	res, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, res.Repaired)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, 2, res.Questions[0].Correct)
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"prose only", "I cannot help with that.", ErrMalformedResponse},
		{"empty", "", ErrMalformedResponse},
		{"truncated", `{"questions":[{"question":"a","options":["1"`, ErrMalformedResponse},
		{"unquoted keys", `{questions:[1]}`, ErrMalformedResponse},
		{"no questions key", `{"items":[{"question":"a"}]}`, ErrEmptyGeneration},
		{"questions not array", `{"questions":"none"}`, ErrEmptyGeneration},
		{"questions empty", `{"questions":[]}`, ErrEmptyGeneration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseCapsQuestionCount(t *testing.T) {
	var items []string
	for i := 0; i < 8; i++ {
		items = append(items, fmt.Sprintf(`{"question":"q%d","options":["a","b","c","d"],"correct":0}`, i))
	}
	raw := `{"questions":[` + strings.Join(items, ",") + `]}`

	res, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, res.Questions, DefaultMaxQuestions)
	assert.Equal(t, "q4", res.Questions[4].Question)

	res, err = Parse(raw, WithMaxQuestions(0))
	require.NoError(t, err)
	assert.Len(t, res.Questions, 8)
}

func TestNormalizeCorrect(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{`"A"`, 0}, {`"b"`, 1}, {`"C"`, 2}, {`"d"`, 3},
		{`"D) Paris"`, 3},
		{`"E"`, 0}, {`"x"`, 0}, {`""`, 0}, {`"2"`, 0},
		{`0`, 0}, {`3`, 3}, {`2`, 2},
		{`4`, 0}, {`-1`, 0}, {`1.5`, 0}, {`2.0`, 2},
		{`null`, 0}, {`true`, 0}, {`[1]`, 0}, {`{"i":1}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			raw := `{"questions":[{"question":"q","options":["a","b","c","d"],"correct":` + tc.in + `}]}`
			res, err := Parse(raw)
			require.NoError(t, err)
			got := res.Questions[0].Correct
			assert.Equal(t, tc.want, got)
			assert.True(t, got >= 0 && got < len(res.Questions[0].Options))
		})
	}
}

func TestNormalizeOptions(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"map keeps document order", `{"d":"dd","a":"aa","c":"cc","b":"bb"}`, []string{"dd", "aa", "cc", "bb"}},
		{"too few", `["x","y","z"]`, []string{"A", "B", "C", "D"}},
		{"missing", `null`, []string{"A", "B", "C", "D"}},
		{"string", `"a,b,c,d"`, []string{"A", "B", "C", "D"}},
		{"too many", `["1","2","3","4","5","6"]`, []string{"1", "2", "3", "4"}},
		{"coerced", `[1, 2.5, true, "x"]`, []string{"1", "2.5", "true", "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Parse(`{"questions":[{"question":"q","options":` + tc.in + `,"correct":"B"}]}`)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Questions[0].Options)
			assert.Equal(t, 1, res.Questions[0].Correct)
		})
	}
}

func TestNormalizeQuestionFields(t *testing.T) {
	raw := `{"questions":[
		{"options":["a","b","c","d"]},
		{"question":"   ","options":["a","b","c","d"]},
		{"question":"  Trimmed?  ","difficulty":"hard","explanation":7},
		{"question":42},
		"not an object",
		null
	]}`
	res, err := Parse(raw, WithMaxQuestions(10), WithDifficulty("beginner"))
	require.NoError(t, err)
	require.Len(t, res.Questions, 6)

	assert.Equal(t, PlaceholderQuestion, res.Questions[0].Question)
	assert.Equal(t, PlaceholderQuestion, res.Questions[1].Question)
	assert.Equal(t, "Trimmed?", res.Questions[2].Question)
	assert.Equal(t, "hard", res.Questions[2].Difficulty)
	assert.Equal(t, "", res.Questions[2].Explanation)
	assert.Equal(t, "42", res.Questions[3].Question)

	for _, q := range res.Questions[4:] {
		assert.Equal(t, PlaceholderQuestion, q.Question)
		assert.Equal(t, []string{"A", "B", "C", "D"}, q.Options)
		assert.Equal(t, 0, q.Correct)
		assert.Equal(t, "beginner", q.Difficulty)
	}
}

func TestParseDiagnostic(t *testing.T) {
	raw := "```json\n" + `{"subjects":{
		"Matematika":{"questions":[
			{"question":"1+1?","options":["1","2","3","4"],"correct":"B","level":"easy"},
			{"question":"2*3?","options":["5","6","7","8"],"correct":1},
			{"question":"x","options":["a","b","c","d"],"correct":0},
			{"question":"dropped","options":["a","b","c","d"],"correct":0}
		]},
		"Fizika":{"questions":[{"question":"g?","options":["9.8","10","1","0"],"correct":0,"level":"medium",}]},
		"Broken":{"notes":"none"}
	}}` + "\n```"

	secs, err := ParseDiagnostic(raw)
	require.NoError(t, err)
	require.Len(t, secs, 2)
	assert.Equal(t, "Matematika", secs[0].Subject)
	require.Len(t, secs[0].Questions, DiagnosticPerSubject)
	assert.Equal(t, "easy", secs[0].Questions[0].Difficulty)
	assert.Equal(t, "medium", secs[0].Questions[1].Difficulty)
	assert.Equal(t, 1, secs[0].Questions[0].Correct)
	assert.Equal(t, "Fizika", secs[1].Subject)

	_, err = ParseDiagnostic(`{"subjects":{}}`)
	assert.ErrorIs(t, err, ErrEmptyGeneration)
	_, err = ParseDiagnostic(`{"subjects":{"A":{"x":1}}}`)
	assert.ErrorIs(t, err, ErrEmptyGeneration)
	_, err = ParseDiagnostic(`nope`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClean(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Clean("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, Clean(`prefix {"a":{"b":2}} suffix`))
	assert.Equal(t, "no braces", Clean("  no braces  "))
}
