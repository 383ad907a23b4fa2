// Package exam runs server-timed test sessions: a student starts a test,
// fetches it without the answer key, and submits answers that are graded
// against the stored bank.
package exam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/grading"
	"github.com/mind-engage/skillway/internal/knowledge"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/metrics"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

type Service struct {
	store   content.Store
	grader  *grading.Grader
	levels  *knowledge.Service
	events  syncx.Appender
	log     *logger.Logger
	metrics *metrics.Metrics

	defaultDuration int
	grace           time.Duration
	now             func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithDefaultDuration sets the timer used when Start is called without one.
func WithDefaultDuration(sec int) Option {
	return func(s *Service) {
		if sec > 0 {
			s.defaultDuration = sec
		}
	}
}

func WithGrace(d time.Duration) Option { return func(s *Service) { s.grace = d } }

func NewService(store content.Store, grader *grading.Grader, levels *knowledge.Service, events syncx.Appender, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:           store,
		grader:          grader,
		levels:          levels,
		events:          events,
		log:             log.With("service", "exam"),
		defaultDuration: DefaultDurationSec,
		grace:           GraceSec * time.Second,
		now:             time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func testNotFound(subjectID, lessonID string) error {
	return apierr.New(http.StatusNotFound, apierr.CodeTestNotFound,
		fmt.Errorf("test %s/%s not found", subjectID, lessonID))
}

func (s *Service) loadTest(ctx context.Context, subjectID, lessonID string) (content.Test, error) {
	t, err := s.store.GetTest(ctx, subjectID, lessonID)
	if errors.Is(err, content.ErrNotFound) {
		return content.Test{}, testNotFound(subjectID, lessonID)
	}
	return t, err
}

// Start stamps the session start time. Starting again overwrites the
// previous session, restarting the timer.
func (s *Service) Start(ctx context.Context, caller content.Caller, in StartInput) (StartResult, error) {
	if in.SubjectID == "" || in.LessonID == "" {
		return StartResult{}, apierr.Validationf("subjectId and lessonId are required")
	}
	duration := in.Duration
	if duration == 0 {
		duration = s.defaultDuration
	}
	if duration < 1 || duration > MaxDurationSec {
		return StartResult{}, apierr.Validationf("duration must be between 1 and %d seconds", MaxDurationSec)
	}
	if _, err := s.loadTest(ctx, in.SubjectID, in.LessonID); err != nil {
		return StartResult{}, err
	}

	start := s.now().UTC().Truncate(time.Millisecond)
	if err := s.store.PutSession(ctx, content.ActiveSession{
		UID:         caller.UID,
		SubjectID:   in.SubjectID,
		LessonID:    in.LessonID,
		StartTime:   start,
		DurationSec: duration,
	}); err != nil {
		return StartResult{}, err
	}
	s.log.Debug("test started", "uid", caller.UID, "subject_id", in.SubjectID, "lesson_id", in.LessonID, "duration", duration)
	return StartResult{Success: true, StartTime: start.UnixMilli(), Duration: duration}, nil
}

// FetchSanitized returns the lesson's test with every answer key removed.
func (s *Service) FetchSanitized(ctx context.Context, subjectID, lessonID string) (SanitizedTest, error) {
	if subjectID == "" || lessonID == "" {
		return SanitizedTest{}, apierr.Validationf("subjectId and lessonId are required")
	}
	t, err := s.loadTest(ctx, subjectID, lessonID)
	if err != nil {
		return SanitizedTest{}, err
	}
	duration := len(t.Questions) * SecondsPerQuestion
	if t.DurationSec != nil && *t.DurationSec > 0 {
		duration = *t.DurationSec
	}
	return SanitizedTest{
		ID:        lessonID,
		Topic:     t.Topic,
		Questions: content.Sanitize(t.Questions),
		Duration:  duration,
	}, nil
}

// Submit grades a started test. The session is consumed whether or not the
// submission is late; a late submission is still graded and flagged.
func (s *Service) Submit(ctx context.Context, caller content.Caller, in SubmitInput) (SubmitResult, error) {
	if in.SubjectID == "" || in.LessonID == "" {
		return SubmitResult{}, apierr.Validationf("subjectId and lessonId are required")
	}
	answers, err := grading.DecodeAnswers(in.Answers)
	if err != nil {
		return SubmitResult{}, apierr.New(http.StatusBadRequest, apierr.CodeInvalidSubmission, err)
	}

	sess, err := s.store.TakeSession(ctx, caller.UID, in.SubjectID, in.LessonID)
	if errors.Is(err, content.ErrNotFound) {
		s.log.Warn("submit without active session", "uid", caller.UID, "subject_id", in.SubjectID, "lesson_id", in.LessonID)
		return SubmitResult{}, apierr.New(http.StatusForbidden, apierr.CodeNoActiveSession,
			errors.New("test was not started"))
	}
	if err != nil {
		return SubmitResult{}, err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	elapsed := int64(now.Sub(sess.StartTime) / time.Second)
	overTime := elapsed > int64(sess.DurationSec)+int64(s.grace/time.Second)

	t, err := s.loadTest(ctx, in.SubjectID, in.LessonID)
	if err != nil {
		return SubmitResult{}, err
	}
	sum := s.grader.Grade(t.Questions, answers)

	u, err := s.store.GetUser(ctx, caller.UID)
	if err != nil {
		return SubmitResult{}, err
	}
	current := knowledge.Parse(u.KnowledgeLevels[in.SubjectID])
	next := knowledge.Transition(sum.Score, current)
	streak := NextStreak(u.Streak, u.LastActive, now)

	attempt := content.Attempt{
		ID:           uuid.NewString(),
		UID:          caller.UID,
		SubjectID:    in.SubjectID,
		LessonID:     in.LessonID,
		Score:        sum.Score,
		CorrectCount: sum.CorrectCount,
		Total:        sum.Total,
		OverTime:     overTime,
		ElapsedSec:   elapsed,
		SubmittedAt:  now,
	}
	if err := s.store.RecordSubmission(ctx, content.SubmissionResult{
		Attempt:      attempt,
		Streak:       streak,
		Level:        string(next),
		LevelChanged: next != current,
	}); err != nil {
		return SubmitResult{}, err
	}

	if err := s.events.Append(ctx, syncx.TypeAttemptSubmitted, attempt.ID, attempt); err != nil {
		s.log.Warn("event append failed", "type", syncx.TypeAttemptSubmitted, "error", err)
	}
	s.metrics.ObserveSubmission(sum.Score, sum.Passed, overTime)
	s.log.Info("test submitted",
		"uid", caller.UID,
		"subject_id", in.SubjectID,
		"lesson_id", in.LessonID,
		"score", sum.Score,
		"over_time", overTime,
		"elapsed_sec", elapsed,
	)

	return SubmitResult{
		Success:      true,
		AttemptID:    attempt.ID,
		Score:        sum.Score,
		CorrectCount: sum.CorrectCount,
		Total:        sum.Total,
		Passed:       sum.Passed,
		OverTime:     overTime,
		ElapsedSec:   elapsed,
		Streak:       streak,
		Level:        string(next),
		LevelChanged: next != current,
	}, nil
}

// SubmitAdaptive grades one of the caller's cached adaptive tests and moves
// the subject's knowledge level. Adaptive tests are untimed.
func (s *Service) SubmitAdaptive(ctx context.Context, caller content.Caller, key string, raw []byte) (AdaptiveResult, error) {
	answers, err := grading.DecodeAnswers(raw)
	if err != nil {
		return AdaptiveResult{}, apierr.New(http.StatusBadRequest, apierr.CodeInvalidSubmission, err)
	}
	t, err := s.store.GetAdaptiveTest(ctx, caller.UID, key)
	if errors.Is(err, content.ErrNotFound) {
		return AdaptiveResult{}, apierr.New(http.StatusNotFound, apierr.CodeTestNotFound,
			fmt.Errorf("adaptive test %s not found", key))
	}
	if err != nil {
		return AdaptiveResult{}, err
	}
	sum := s.grader.Grade(t.Questions, answers)
	level, changed, err := s.levels.Apply(ctx, caller.UID, t.SubjectID, sum.Score)
	if err != nil {
		return AdaptiveResult{}, err
	}
	s.metrics.ObserveSubmission(sum.Score, sum.Passed, false)
	return AdaptiveResult{
		Success:      true,
		Score:        sum.Score,
		CorrectCount: sum.CorrectCount,
		Total:        sum.Total,
		Passed:       sum.Passed,
		Level:        string(level),
		LevelChanged: changed,
	}, nil
}

// NextStreak counts consecutive active days: activity on the same UTC day
// keeps the streak, on the following day extends it, later resets it to 1.
func NextStreak(streak int, lastActive, now time.Time) int {
	if lastActive.IsZero() || streak <= 0 {
		return 1
	}
	y1, m1, d1 := lastActive.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	last := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	switch days := int(today.Sub(last).Hours() / 24); {
	case days <= 0:
		return streak
	case days == 1:
		return streak + 1
	default:
		return 1
	}
}
