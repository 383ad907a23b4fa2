package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillway/internal/db"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	h, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return NewSQLStore(h)
}

func seedCatalog(t *testing.T, s *SQLStore) {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000).UTC()
	seven := 7
	require.NoError(t, s.CommitCatalog(context.Background(), CatalogBatch{
		Subjects: []Subject{{ID: "math", Name: "Matematika", Path: []string{"l1", "l2"}, Classes: []int{7, 5}, CreatedAt: now}},
		Lessons: []Lesson{
			{ID: "l1", SubjectID: "math", Title: "Fractions", Order: 1, Sinf: &seven, CreatedAt: now},
			{ID: "l2", SubjectID: "math", Title: "Decimals", Order: 2, CreatedAt: now},
		},
		Tests: []Test{{SubjectID: "math", LessonID: "l1", Questions: []Question{
			{Question: "1/2 + 1/2 = ?", Options: []string{"1", "2", "0", "1/4"}, Correct: 0},
		}, CreatedAt: now}},
		Log: UploadLog{ID: "up1", FileName: "plan.xlsx", UID: "t1", RowCount: 2, NewSubjects: 1, NewLessons: 2, CreatedAt: now},
	}))
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, User{UID: "u1", Email: "Ali@School.uz", DisplayName: "Ali", Grade: 7}))
	err := s.CreateUser(ctx, User{UID: "u2", Email: "ali@school.uz"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	u, err := s.GetUserByEmail(ctx, "ALI@school.uz")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UID)
	assert.Equal(t, RoleStudent, u.Role)
	assert.Empty(t, u.Progress)

	teacher := RoleTeacher
	grade := 8
	u, err = s.UpdateUser(ctx, "u1", UserPatch{Role: &teacher, Grade: &grade})
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, u.Role)
	assert.Equal(t, 8, u.Grade)

	list, err := s.ListUsers(ctx, RoleTeacher)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.GetUser(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCatalogCommitAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCatalog(t, s)

	sb, err := s.GetSubject(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2"}, sb.Path)
	assert.Equal(t, []int{5, 7}, sb.Classes)
	require.Len(t, sb.Lessons, 2)
	require.NotNil(t, sb.Lessons["l1"].Sinf)
	assert.Equal(t, 7, *sb.Lessons["l1"].Sinf)
	assert.Nil(t, sb.Lessons["l2"].Sinf)

	byName, err := s.FindSubjectByName(ctx, "  MATEMATIKA ")
	require.NoError(t, err)
	assert.Equal(t, "math", byName.ID)

	all, err := s.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Lessons, 2)

	test, err := s.GetTest(ctx, "math", "l1")
	require.NoError(t, err)
	assert.Equal(t, 0, test.Questions[0].Correct)
	assert.Nil(t, test.DurationSec)
}

func TestCommitCatalogIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	err := s.CommitCatalog(ctx, CatalogBatch{
		Subjects: []Subject{{ID: "bio", Name: "Biology", CreatedAt: now}},
		Lessons: []Lesson{
			{ID: "b1", SubjectID: "bio", Title: "Cells", Order: 1, CreatedAt: now},
			{ID: "b1", SubjectID: "bio", Title: "Duplicate id", Order: 2, CreatedAt: now},
		},
	})
	require.Error(t, err)

	_, err = s.GetSubject(ctx, "bio")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveGeneratedTestMarksLesson(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCatalog(t, s)

	at := time.UnixMilli(1_800_000_000_000).UTC()
	dur := 300
	require.NoError(t, s.SaveGeneratedTest(ctx, Test{SubjectID: "math", LessonID: "l2", Topic: "Decimals",
		Questions: []Question{{Question: "0.5 = ?", Options: []string{"1/2", "1/3", "1/4", "1/5"}, Correct: 0}},
		DurationSec: &dur, CreatedAt: at}))

	l, err := s.GetLesson(ctx, "math", "l2")
	require.NoError(t, err)
	assert.True(t, l.TestGenerated)
	require.NotNil(t, l.LastGenerated)
	assert.True(t, at.Equal(*l.LastGenerated))

	test, err := s.GetTest(ctx, "math", "l2")
	require.NoError(t, err)
	require.NotNil(t, test.DurationSec)
	assert.Equal(t, 300, *test.DurationSec)

	err = s.SaveGeneratedTest(ctx, Test{SubjectID: "math", LessonID: "nope", CreatedAt: at})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTest(ctx, "math", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTakeSessionDeletes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	start := time.UnixMilli(1_700_000_000_123).UTC()
	require.NoError(t, s.PutSession(ctx, ActiveSession{UID: "u1", SubjectID: "math", LessonID: "l1", StartTime: start, DurationSec: 600}))
	// restart overwrites
	require.NoError(t, s.PutSession(ctx, ActiveSession{UID: "u1", SubjectID: "math", LessonID: "l1", StartTime: start, DurationSec: 900}))

	got, err := s.TakeSession(ctx, "u1", "math", "l1")
	require.NoError(t, err)
	assert.Equal(t, 900, got.DurationSec)
	assert.True(t, start.Equal(got.StartTime))

	_, err = s.TakeSession(ctx, "u1", "math", "l1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordSubmission(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(ctx, User{UID: "u1", Email: "u1@x.uz"}))

	at := time.UnixMilli(1_700_000_500_000).UTC()
	require.NoError(t, s.RecordSubmission(ctx, SubmissionResult{
		Attempt: Attempt{ID: "a1", UID: "u1", SubjectID: "math", LessonID: "l1", Score: 85, CorrectCount: 17, Total: 20,
			ElapsedSec: 120, SubmittedAt: at},
		Streak:       3,
		Level:        "advanced",
		LevelChanged: true,
	}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 85, u.Progress["math"]["l1"])
	assert.Equal(t, 3, u.Streak)
	assert.Equal(t, "advanced", u.KnowledgeLevels["math"])
	assert.True(t, at.Equal(u.LastActive))
	assert.True(t, at.Equal(u.LastLevelUpdate))

	attempts, err := s.ListAttempts(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 17, attempts[0].CorrectCount)

	err = s.RecordSubmission(ctx, SubmissionResult{Attempt: Attempt{ID: "a2", UID: "ghost", SubmittedAt: at}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdaptiveTestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := AdaptiveTest{Key: "math_general_beginner", SubjectID: "math", TopicID: "general", Topic: "Fractions",
		Level: "beginner", Questions: []Question{{Question: "q", Options: []string{"a", "b", "c", "d"}, Correct: 2}},
		CreatedAt: time.UnixMilli(1_700_000_000_000).UTC()}
	require.NoError(t, s.SaveAdaptiveTest(ctx, "u1", in))

	got, err := s.GetAdaptiveTest(ctx, "u1", "math_general_beginner")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = s.GetAdaptiveTest(ctx, "u2", "math_general_beginner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "ingliztili", NameKey(" Ingliz tili! "))
	assert.Equal(t, "ozbektili", NameKey("O'zbek tili"))
}

func TestSubjectOfferedTo(t *testing.T) {
	assert.True(t, Subject{}.OfferedTo(5))
	assert.True(t, Subject{Classes: []int{5, 6}}.OfferedTo(6))
	assert.False(t, Subject{Classes: []int{5, 6}}.OfferedTo(9))
}
