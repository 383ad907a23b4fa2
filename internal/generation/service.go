// Package generation produces multiple-choice tests with a language model:
// shared lesson banks authored by teachers, private adaptive tests pitched
// at a student's level, and the diagnostic placement test.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/knowledge"
	"github.com/mind-engage/skillway/internal/lease"
	"github.com/mind-engage/skillway/internal/llm"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/metrics"
	"github.com/mind-engage/skillway/internal/questionjson"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

const (
	DefaultGrade    = 7
	DefaultTopicID  = "general"
	MaxBatch        = 5
	DefaultCooldown = 24 * time.Hour
)

type Config struct {
	// Cooldown is the minimum time between two generations of one lesson.
	Cooldown time.Duration
	// Timeout bounds one generation, retries included.
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Cooldown:    DefaultCooldown,
		Timeout:     60 * time.Second,
		Temperature: 0.7,
		MaxTokens:   2500,
	}
}

type Service struct {
	store    content.Store
	provider llm.Provider
	locker   lease.Locker
	levels   *knowledge.Service
	events   syncx.Appender
	log      *logger.Logger
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func NewService(
	store content.Store,
	provider llm.Provider,
	locker lease.Locker,
	levels *knowledge.Service,
	events syncx.Appender,
	log *logger.Logger,
	cfg Config,
	opts ...Option,
) *Service {
	def := DefaultConfig()
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	s := &Service{
		store:    store,
		provider: provider,
		locker:   locker,
		levels:   levels,
		events:   events,
		log:      log.With("service", "generation"),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type GenerateInput struct {
	Topic     string `json:"topic" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
	LessonID  string `json:"lessonId" validate:"required"`
	Grade     int    `json:"grade,omitempty" validate:"omitempty,min=1,max=11"`
	// Difficulty selects the prompt tier. Empty means intermediate.
	Difficulty string `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	// Force skips the cooldown.
	Force bool `json:"force,omitempty"`
}

type TestGenerationResult struct {
	Topic     string             `json:"topic"`
	Questions []content.Question `json:"questions"`
	LessonID  string             `json:"lessonId"`
	Timestamp int64              `json:"timestamp"` // unix ms
}

// CooldownError reports how long until a lesson may be regenerated.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("test was generated recently, retry in %s", e.Remaining.Round(time.Minute))
}

func (e *CooldownError) RetryAfterSeconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

func (e *CooldownError) Details() any {
	return map[string]int{"retryAfter": e.RetryAfterSeconds()}
}

func leaseKey(subjectID, lessonID string) string {
	return "skillway:gen:" + subjectID + ":" + lessonID
}

// Generate builds the shared test bank for one lesson and replaces the
// previous one. Only teachers and admins may call it.
func (s *Service) Generate(ctx context.Context, caller content.Caller, in GenerateInput) (TestGenerationResult, error) {
	if !caller.Role.CanAuthor() {
		return TestGenerationResult{}, apierr.Forbidden(errors.New("teachers only"))
	}
	in.Topic = strings.TrimSpace(in.Topic)
	if in.Topic == "" || in.LessonID == "" || in.SubjectID == "" {
		return TestGenerationResult{}, apierr.Validationf("topic, subjectId and lessonId are required")
	}
	if in.Difficulty != "" && !knowledge.Valid(in.Difficulty) {
		return TestGenerationResult{}, apierr.Validationf("unknown difficulty %q", in.Difficulty)
	}
	lesson, err := s.store.GetLesson(ctx, in.SubjectID, in.LessonID)
	if errors.Is(err, content.ErrNotFound) {
		return TestGenerationResult{}, apierr.NotFound(fmt.Errorf("lesson %s/%s not found", in.SubjectID, in.LessonID))
	}
	if err != nil {
		return TestGenerationResult{}, err
	}
	if err := s.checkCooldown(lesson, in.Force); err != nil {
		return TestGenerationResult{}, err
	}
	return s.generateLesson(ctx, caller, in)
}

func (s *Service) checkCooldown(l content.Lesson, force bool) error {
	if force || l.LastGenerated == nil {
		return nil
	}
	if since := s.now().Sub(*l.LastGenerated); since < s.cfg.Cooldown {
		return apierr.New(http.StatusTooManyRequests, apierr.CodeCooldownActive,
			&CooldownError{Remaining: s.cfg.Cooldown - since})
	}
	return nil
}

func (s *Service) generateLesson(ctx context.Context, caller content.Caller, in GenerateInput) (TestGenerationResult, error) {
	release, err := s.locker.Acquire(ctx, leaseKey(in.SubjectID, in.LessonID), s.cfg.Timeout+10*time.Second)
	if errors.Is(err, lease.ErrHeld) {
		return TestGenerationResult{}, apierr.New(http.StatusTooManyRequests, apierr.CodeGenerationInProgress,
			fmt.Errorf("lesson %s is already being generated", in.LessonID))
	}
	if err != nil {
		return TestGenerationResult{}, err
	}
	defer release()

	grade := in.Grade
	if grade <= 0 {
		grade = DefaultGrade
	}
	tier := knowledge.Intermediate
	if in.Difficulty != "" {
		tier = knowledge.Parse(in.Difficulty)
	}

	start := s.now()
	questions, err := ask(ctx, s, "lesson_test", systemTest, lessonPrompt(in.Topic, grade, tier), s.cfg.Temperature, s.cfg.MaxTokens,
		func(text string) ([]content.Question, error) {
			res, err := questionjson.Parse(text)
			if err != nil {
				return nil, err
			}
			if res.Repaired {
				s.log.Debug("model output repaired", "lesson_id", in.LessonID)
			}
			return res.Questions, nil
		})
	if err != nil {
		s.observe("lesson", err, start)
		s.log.Warn("generation failed", "subject_id", in.SubjectID, "lesson_id", in.LessonID, "error", err)
		return TestGenerationResult{}, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	test := content.Test{
		SubjectID: in.SubjectID,
		LessonID:  in.LessonID,
		Topic:     in.Topic,
		Questions: questions,
		CreatedAt: now,
	}
	if err := s.store.SaveGeneratedTest(ctx, test); err != nil {
		return TestGenerationResult{}, err
	}
	s.observe("lesson", nil, start)
	s.appendEvent(ctx, syncx.TypeTestGenerated, in.SubjectID+"/"+in.LessonID, map[string]any{
		"topic":     in.Topic,
		"questions": len(questions),
		"by":        caller.UID,
	})
	s.log.Info("test generated", "subject_id", in.SubjectID, "lesson_id", in.LessonID, "questions", len(questions), "by", caller.UID)

	return TestGenerationResult{
		Topic:     in.Topic,
		Questions: questions,
		LessonID:  in.LessonID,
		Timestamp: now.UnixMilli(),
	}, nil
}

// ask runs one bounded model call and decodes the reply. Errors come back
// already classified as API errors.
func ask[T any](ctx context.Context, s *Service, purpose, system, prompt string, temperature float64, maxTokens int, decode func(string) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(llm.WithPurpose(ctx, purpose), s.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt(system, prompt)
	req.Temperature = temperature
	req.MaxTokens = maxTokens
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return zero, classify(err)
	}
	out, err := decode(resp.Text)
	if err != nil {
		return zero, classify(err)
	}
	return out, nil
}

// classify maps model and parse failures onto the API taxonomy.
func classify(err error) error {
	var ue *llm.UpstreamError
	switch {
	case errors.Is(err, questionjson.ErrMalformedResponse), errors.Is(err, questionjson.ErrEmptyGeneration):
		return apierr.New(http.StatusInternalServerError, apierr.CodeGenerationFailed, err)
	case errors.Is(err, llm.ErrEmptyResponse):
		return apierr.New(http.StatusInternalServerError, apierr.CodeEmptyGeneration, err)
	case errors.As(err, &ue), errors.Is(err, context.DeadlineExceeded):
		return apierr.New(http.StatusInternalServerError, apierr.CodeUpstream, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return apierr.New(http.StatusInternalServerError, apierr.CodeUpstream, err)
}

func (s *Service) observe(kind string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = apierr.From(err).Code
	}
	s.metrics.ObserveGeneration(kind, outcome, s.now().Sub(start))
}

func (s *Service) appendEvent(ctx context.Context, typ, key string, data any) {
	if err := s.events.Append(ctx, typ, key, data); err != nil {
		s.log.Warn("event append failed", "type", typ, "error", err)
	}
}
