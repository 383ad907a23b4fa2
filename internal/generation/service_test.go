package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/db"
	"github.com/mind-engage/skillway/internal/knowledge"
	"github.com/mind-engage/skillway/internal/lease"
	"github.com/mind-engage/skillway/internal/llm"
	"github.com/mind-engage/skillway/internal/logger"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

const fiveQuestions = "```json\n" + `{"questions":[
 {"question":"1+1","options":["1","2","3","4"],"correct":"B"},
 {"question":"2+2","options":["4","2","3","5"],"correct":0},
 {"question":"3+3","options":{"a":"5","b":"7","c":"6","d":"9"},"correct":2},
 {"question":"4+4","options":["8","2","3","4"],"correct":0,},
 {"question":"5+5","options":["1","10"],"correct":1},
 {"question":"6+6","options":["12","2","3","4"],"correct":0}
]}` + "\n```"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *content.SQLStore
	mock    *llm.MockProvider
	locker  *lease.Memory
	events  *syncx.MemoryLog
	now     time.Time
	teacher content.Caller
	student content.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	h, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	store := content.NewSQLStore(h)
	require.NoError(t, store.CreateUser(ctx, content.User{UID: "t1", Email: "t1@school.uz", Role: content.RoleTeacher}))
	require.NoError(t, store.CreateUser(ctx, content.User{UID: "s1", Email: "s1@school.uz", Grade: 6}))
	require.NoError(t, store.CommitCatalog(ctx, content.CatalogBatch{
		Subjects: []content.Subject{{ID: "math", Name: "Matematika", Path: []string{"l1", "l2", "l3"}, CreatedAt: t0}},
		Lessons: []content.Lesson{
			{ID: "l1", SubjectID: "math", Title: "Kasrlar", Order: 1, CreatedAt: t0},
			{ID: "l2", SubjectID: "math", Title: "Tenglamalar", Order: 2, CreatedAt: t0},
			{ID: "l3", SubjectID: "math", Title: "Foizlar", Order: 3, CreatedAt: t0},
		},
		Log: content.UploadLog{ID: "up1", FileName: "plan.csv", UID: "t1", CreatedAt: t0},
	}))

	f := &fixture{
		store:   store,
		mock:    llm.NewMockProvider(),
		locker:  lease.NewMemory(),
		events:  &syncx.MemoryLog{},
		now:     t0,
		teacher: content.Caller{UID: "t1", Role: content.RoleTeacher},
		student: content.Caller{UID: "s1", Role: content.RoleStudent, Grade: 6},
	}
	f.svc = NewService(store, f.mock, f.locker, knowledge.NewService(store), f.events, logger.Nop(),
		Config{Timeout: 5 * time.Second}, WithClock(func() time.Time { return f.now }))
	return f
}

func TestGenerateStoresNormalizedBank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.AddResponse(llm.MockResponse{Text: fiveQuestions})

	res, err := f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: " Qo'shish ", SubjectID: "math", LessonID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, "Qo'shish", res.Topic)
	assert.Equal(t, t0.UnixMilli(), res.Timestamp)
	require.Len(t, res.Questions, 5)
	assert.Equal(t, 1, res.Questions[0].Correct)
	assert.Equal(t, []string{"5", "7", "6", "9"}, res.Questions[2].Options)
	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Questions[4].Options)
	for _, q := range res.Questions {
		assert.Equal(t, "medium", q.Difficulty)
	}

	req := f.mock.LastRequest()
	assert.Equal(t, systemTest, req.System)
	assert.Contains(t, req.Messages[0].Content, "7-sinf")
	assert.Contains(t, req.Messages[0].Content, "INTERMEDIATE")

	stored, err := f.store.GetTest(ctx, "math", "l1")
	require.NoError(t, err)
	assert.Equal(t, res.Questions, stored.Questions)

	l, err := f.store.GetLesson(ctx, "math", "l1")
	require.NoError(t, err)
	assert.True(t, l.TestGenerated)
	require.NotNil(t, l.LastGenerated)
	assert.Equal(t, t0.UnixMilli(), l.LastGenerated.UnixMilli())

	assert.Len(t, f.events.Events(syncx.TypeTestGenerated), 1)
}

func TestGenerateCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.Fallback = fiveQuestions
	in := GenerateInput{Topic: "Kasrlar", SubjectID: "math", LessonID: "l1"}

	_, err := f.svc.Generate(ctx, f.teacher, in)
	require.NoError(t, err)

	f.now = t0.Add(time.Hour)
	_, err = f.svc.Generate(ctx, f.teacher, in)
	require.Error(t, err)
	assert.True(t, apierr.HasCode(err, apierr.CodeCooldownActive))
	assert.Equal(t, 429, apierr.From(err).Status)
	var cd *CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, 23*time.Hour, cd.Remaining)
	assert.Equal(t, 1, f.mock.CallCount())

	in.Force = true
	_, err = f.svc.Generate(ctx, f.teacher, in)
	require.NoError(t, err)

	f.now = t0.Add(26 * time.Hour)
	in.Force = false
	_, err = f.svc.Generate(ctx, f.teacher, in)
	require.NoError(t, err)
}

func TestGenerateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.student, GenerateInput{Topic: "x", SubjectID: "math", LessonID: "l1"})
	assert.True(t, apierr.HasCode(err, apierr.CodeForbidden))

	_, err = f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: "  ", SubjectID: "math", LessonID: "l1"})
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))

	_, err = f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: "x", SubjectID: "math", LessonID: "nope"})
	assert.True(t, apierr.HasCode(err, apierr.CodeNotFound))

	_, err = f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: "x", SubjectID: "math", LessonID: "l1", Difficulty: "expert"})
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))

	assert.Equal(t, 0, f.mock.CallCount())
}

func TestGenerateFailuresLeaveBankUntouched(t *testing.T) {
	cases := []struct {
		name string
		resp llm.MockResponse
		code string
	}{
		{"malformed", llm.MockResponse{Text: `{"questions":[{"question":"x"`}, apierr.CodeGenerationFailed},
		{"no questions", llm.MockResponse{Text: `{"questions":[]}`}, apierr.CodeGenerationFailed},
		{"empty completion", llm.MockResponse{Err: llm.ErrEmptyResponse}, apierr.CodeEmptyGeneration},
		{"upstream", llm.MockResponse{Err: &llm.UpstreamError{Provider: "mock", StatusCode: 401, Err: errors.New("bad key")}}, apierr.CodeUpstream},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.mock.AddResponse(c.resp)

			_, err := f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: "x", SubjectID: "math", LessonID: "l1"})
			require.Error(t, err)
			assert.True(t, apierr.HasCode(err, c.code), "got %v", err)
			assert.Equal(t, 500, apierr.From(err).Status)

			_, err = f.store.GetTest(ctx, "math", "l1")
			assert.ErrorIs(t, err, content.ErrNotFound)
			l, err := f.store.GetLesson(ctx, "math", "l1")
			require.NoError(t, err)
			assert.False(t, l.TestGenerated)
		})
	}
}

func TestGenerateWhileLeaseHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.Fallback = fiveQuestions

	release, err := f.locker.Acquire(ctx, leaseKey("math", "l1"), time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: "x", SubjectID: "math", LessonID: "l1"})
	assert.True(t, apierr.HasCode(err, apierr.CodeGenerationInProgress))
	assert.Equal(t, 429, apierr.From(err).Status)

	release()
	_, err = f.svc.Generate(ctx, f.teacher, GenerateInput{Topic: "x", SubjectID: "math", LessonID: "l1"})
	require.NoError(t, err)
}

func TestGenerateAdaptiveUsesStoredLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetKnowledgeLevel(ctx, "s1", "math", "advanced", t0))
	f.mock.AddResponse(llm.MockResponse{Text: `{"questions":[{"question":"q","options":["a","b","c","d"],"correct":3,"difficulty":"easy"}]}`})

	res, err := f.svc.GenerateAdaptive(ctx, f.student, AdaptiveInput{SubjectID: "math", TopicTitle: "Kasrlar"})
	require.NoError(t, err)
	assert.Equal(t, "math_general_advanced", res.TestKey)
	assert.Equal(t, "advanced", res.Difficulty)
	assert.Equal(t, 6, res.Grade)
	require.Len(t, res.Questions, 1)
	assert.Contains(t, f.mock.LastRequest().Messages[0].Content, "ADVANCED")

	stored, err := f.store.GetAdaptiveTest(ctx, "s1", "math_general_advanced")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Questions[0].Correct)
	assert.Equal(t, "advanced", stored.Questions[0].Difficulty)

	got, err := f.svc.AdaptiveTest(ctx, f.student, res.TestKey)
	require.NoError(t, err)
	assert.Equal(t, res.Questions, got.Questions)

	_, err = f.svc.AdaptiveTest(ctx, f.teacher, res.TestKey)
	assert.True(t, apierr.HasCode(err, apierr.CodeNotFound))
}

func TestGenerateAdaptiveExplicitLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.Fallback = fiveQuestions

	res, err := f.svc.GenerateAdaptive(ctx, f.student, AdaptiveInput{
		SubjectID: "math", TopicID: "t7", TopicTitle: "Foizlar", Level: "beginner", Grade: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "math_t7_beginner", res.TestKey)
	assert.Equal(t, 9, res.Grade)

	_, err = f.svc.GenerateAdaptive(ctx, f.student, AdaptiveInput{SubjectID: "math", TopicTitle: "x", Level: "genius"})
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))

	_, err = f.svc.GenerateAdaptive(ctx, f.student, AdaptiveInput{SubjectID: "history", TopicTitle: "x"})
	assert.True(t, apierr.HasCode(err, apierr.CodeNotFound))
}

func TestGenerateMissingAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.AddResponse(llm.MockResponse{Text: fiveQuestions})
	f.mock.AddResponse(llm.MockResponse{Text: "sorry, I cannot help"})
	f.mock.AddResponse(llm.MockResponse{Text: fiveQuestions})

	res, err := f.svc.GenerateMissing(ctx, f.teacher, "math", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Errors, 1)

	// Only the failed lesson is still missing.
	f.mock.Fallback = fiveQuestions
	res, err = f.svc.GenerateMissing(ctx, f.teacher, "math", 1)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Generated: 1}, res)

	_, err = f.svc.GenerateMissing(ctx, f.student, "math", 0)
	assert.True(t, apierr.HasCode(err, apierr.CodeForbidden))
}

func TestGenerateMissingHonoursLimit(t *testing.T) {
	f := newFixture(t)
	f.mock.Fallback = fiveQuestions

	res, err := f.svc.GenerateMissing(context.Background(), f.teacher, "math", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Skipped)
}

func TestAssessDefaultsSubjects(t *testing.T) {
	f := newFixture(t)
	f.mock.AddResponse(llm.MockResponse{Text: `Here you go: {"subjects":{
		"Matematika":{"questions":[{"question":"2+3","options":["5","4","6","1"],"correct":0,"level":"easy"}]},
		"Fizika":{"questions":[{"question":"v=?","options":["s/t","t/s","st","s"],"correct":"A"}]},
		"Ingliz tili":{"note":"none"}
	}}`})

	res, err := f.svc.Assess(context.Background(), AssessInput{Grade: 3})
	require.NoError(t, err)
	require.Len(t, res.Subjects, 2)
	assert.Equal(t, "Matematika", res.Subjects[0].Subject)
	assert.Equal(t, "easy", res.Subjects[0].Questions[0].Difficulty)
	assert.Equal(t, "medium", res.Subjects[1].Questions[0].Difficulty)
	assert.Equal(t, 2, res.TotalQuestions)

	prompt := f.mock.LastRequest().Messages[0].Content
	assert.True(t, strings.Contains(prompt, "Ona tili"))
	assert.Equal(t, diagnosticMaxTokens, f.mock.LastRequest().MaxTokens)

	_, err = f.svc.Assess(context.Background(), AssessInput{Grade: 12})
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))
}

func TestSaveAssessmentSeedsLevels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	levels, err := f.svc.SaveAssessment(ctx, f.student, map[string]int{"math": 90, "physics": 55, "english": 10})
	require.NoError(t, err)
	assert.Equal(t, knowledge.Advanced, levels["math"])
	assert.Equal(t, knowledge.Intermediate, levels["physics"])
	assert.Equal(t, knowledge.Beginner, levels["english"])

	u, err := f.store.GetUser(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "advanced", u.KnowledgeLevels["math"])
	assert.Len(t, f.events.Events(syncx.TypeAssessmentCompleted), 1)

	_, err = f.svc.SaveAssessment(ctx, f.student, map[string]int{"math": 120})
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))
}
