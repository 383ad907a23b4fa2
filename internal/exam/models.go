package exam

import (
	"encoding/json"

	"github.com/mind-engage/skillway/internal/content"
)

const (
	DefaultDurationSec = 600
	MaxDurationSec     = 3 * 60 * 60
	// GraceSec is added to the duration before a submission counts as late.
	GraceSec = 30
	// SecondsPerQuestion sizes the timer of a test stored without a duration.
	SecondsPerQuestion = 60
)

type StartInput struct {
	SubjectID string `json:"subjectId" validate:"required"`
	LessonID  string `json:"lessonId" validate:"required"`
	Duration  int    `json:"duration,omitempty" validate:"omitempty,min=1,max=10800"`
}

type StartResult struct {
	Success   bool  `json:"success"`
	StartTime int64 `json:"startTime"` // unix ms
	Duration  int   `json:"duration"`
}

// SanitizedTest is what a student sees before submitting.
type SanitizedTest struct {
	ID        string                   `json:"id"`
	Topic     string                   `json:"topic,omitempty"`
	Questions []content.PublicQuestion `json:"questions"`
	Duration  int                      `json:"duration"`
}

type SubmitInput struct {
	SubjectID string          `json:"subjectId" validate:"required"`
	LessonID  string          `json:"lessonId" validate:"required"`
	Answers   json.RawMessage `json:"answers" validate:"required"`
}

type SubmitResult struct {
	Success      bool   `json:"success"`
	AttemptID    string `json:"attemptId"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
	Total        int    `json:"total"`
	Passed       bool   `json:"passed"`
	OverTime     bool   `json:"overTime"`
	ElapsedSec   int64  `json:"elapsedSec"`
	Streak       int    `json:"streak"`
	Level        string `json:"level"`
	LevelChanged bool   `json:"levelChanged"`
}

// AdaptiveResult is the outcome of grading a cached adaptive test.
type AdaptiveResult struct {
	Success      bool   `json:"success"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
	Total        int    `json:"total"`
	Passed       bool   `json:"passed"`
	Level        string `json:"level"`
	LevelChanged bool   `json:"levelChanged"`
}
