package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillway/internal/content"
)

func bank(correct ...int) []content.Question {
	qs := make([]content.Question, len(correct))
	for i, c := range correct {
		qs[i] = content.Question{Question: "q", Options: []string{"a", "b", "c", "d"}, Correct: c}
	}
	return qs
}

func TestDecodeAnswers(t *testing.T) {
	got, err := DecodeAnswers([]byte(`[0, 2, "1", null, 1.5, 3.0, [1], {"a":1}]`))
	require.NoError(t, err)
	require.Len(t, got, 8)
	require.NotNil(t, got[0])
	assert.Equal(t, 0, *got[0])
	assert.Equal(t, 2, *got[1])
	assert.Nil(t, got[2])
	assert.Nil(t, got[3])
	assert.Nil(t, got[4])
	require.NotNil(t, got[5])
	assert.Equal(t, 3, *got[5])
	assert.Nil(t, got[6])
	assert.Nil(t, got[7])

	for _, bad := range []string{`{"0":1}`, `"0,1"`, `3`, `null`, ``, `[1,2`} {
		_, err := DecodeAnswers([]byte(bad))
		assert.ErrorIs(t, err, ErrNotArray, bad)
	}

	empty, err := DecodeAnswers([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGrade(t *testing.T) {
	g := NewGrader()
	qs := bank(0, 1, 2, 3, 0)

	all, _ := DecodeAnswers([]byte(`[0,1,2,3,0]`))
	s := g.Grade(qs, all)
	assert.Equal(t, 5, s.CorrectCount)
	assert.Equal(t, 100, s.Score)
	assert.True(t, s.Passed)

	none, _ := DecodeAnswers([]byte(`[1,2,3,0,1]`))
	s = g.Grade(qs, none)
	assert.Equal(t, 0, s.CorrectCount)
	assert.Equal(t, 0, s.Score)
	assert.False(t, s.Passed)

	partial, _ := DecodeAnswers([]byte(`[0,"1",2]`))
	s = g.Grade(qs, partial)
	assert.Equal(t, 2, s.CorrectCount)
	assert.Equal(t, 40, s.Score)
	assert.Equal(t, []bool{true, false, true, false, false}, s.Correct)
}

func TestPassThreshold(t *testing.T) {
	qs := bank(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	seven, _ := DecodeAnswers([]byte(`[0,0,0,0,0,0,0,1,1,1]`))

	assert.True(t, NewGrader().Grade(qs, seven).Passed)
	assert.False(t, NewGrader(WithPassThreshold(80)).Grade(qs, seven).Passed)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 100, Percent(7, 7))
	assert.Equal(t, 13, Percent(1, 8)) // 12.5 rounds up
}
