package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/knowledge"
	"github.com/mind-engage/skillway/internal/questionjson"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

type AdaptiveInput struct {
	SubjectID  string `json:"subjectId" validate:"required"`
	TopicID    string `json:"topicId,omitempty"`
	TopicTitle string `json:"topicTitle" validate:"required"`
	Grade      int    `json:"grade,omitempty" validate:"omitempty,min=1,max=11"`
	// Level overrides the caller's stored level for the subject.
	Level string `json:"knowledgeLevel,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type AdaptiveResult struct {
	Success     bool                     `json:"success"`
	TestKey     string                   `json:"testKey"`
	SubjectID   string                   `json:"subjectId"`
	TopicID     string                   `json:"topicId"`
	TopicTitle  string                   `json:"topicTitle"`
	Difficulty  string                   `json:"difficulty"`
	Grade       int                      `json:"grade"`
	Questions   []content.PublicQuestion `json:"questions"`
	GeneratedAt int64                    `json:"generatedAt"`
}

// AdaptiveKey names a cached adaptive test. One test is kept per subject,
// topic and level; regenerating replaces it.
func AdaptiveKey(subjectID, topicID string, level knowledge.Level) string {
	if topicID == "" {
		topicID = DefaultTopicID
	}
	return fmt.Sprintf("%s_%s_%s", subjectID, topicID, level)
}

// GenerateAdaptive builds a private test for the caller at their level and
// stores it in their adaptive cache. Questions are returned without the key;
// grading happens on submit.
func (s *Service) GenerateAdaptive(ctx context.Context, caller content.Caller, in AdaptiveInput) (AdaptiveResult, error) {
	in.TopicTitle = strings.TrimSpace(in.TopicTitle)
	if in.SubjectID == "" || in.TopicTitle == "" {
		return AdaptiveResult{}, apierr.Validationf("subjectId and topicTitle are required")
	}
	if in.Level != "" && !knowledge.Valid(in.Level) {
		return AdaptiveResult{}, apierr.Validationf("unknown knowledge level %q", in.Level)
	}
	if _, err := s.store.GetSubject(ctx, in.SubjectID); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return AdaptiveResult{}, apierr.NotFound(fmt.Errorf("subject %s not found", in.SubjectID))
		}
		return AdaptiveResult{}, err
	}

	level := knowledge.Level(in.Level)
	if level == "" {
		current, err := s.levels.Current(ctx, caller.UID, in.SubjectID)
		if err != nil {
			return AdaptiveResult{}, err
		}
		level = current
	}
	grade := in.Grade
	if grade <= 0 {
		grade = caller.Grade
	}
	if grade <= 0 {
		grade = DefaultGrade
	}
	topicID := in.TopicID
	if topicID == "" {
		topicID = DefaultTopicID
	}

	start := s.now()
	questions, err := ask(ctx, s, "adaptive_test", systemAdaptive, adaptivePrompt(in.TopicTitle, grade, level), s.cfg.Temperature, s.cfg.MaxTokens,
		func(text string) ([]content.Question, error) {
			res, err := questionjson.Parse(text, questionjson.WithDifficulty(string(level)))
			if err != nil {
				return nil, err
			}
			for i := range res.Questions {
				res.Questions[i].Difficulty = string(level)
			}
			return res.Questions, nil
		})
	if err != nil {
		s.observe("adaptive", err, start)
		s.log.Warn("adaptive generation failed", "uid", caller.UID, "subject_id", in.SubjectID, "error", err)
		return AdaptiveResult{}, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	t := content.AdaptiveTest{
		Key:       AdaptiveKey(in.SubjectID, topicID, level),
		SubjectID: in.SubjectID,
		TopicID:   topicID,
		Topic:     in.TopicTitle,
		Level:     string(level),
		Questions: questions,
		CreatedAt: now,
	}
	if err := s.store.SaveAdaptiveTest(ctx, caller.UID, t); err != nil {
		return AdaptiveResult{}, err
	}
	s.observe("adaptive", nil, start)
	s.appendEvent(ctx, syncx.TypeAdaptiveTestGenerated, t.Key, map[string]any{
		"uid":       caller.UID,
		"level":     t.Level,
		"questions": len(questions),
	})

	return AdaptiveResult{
		Success:     true,
		TestKey:     t.Key,
		SubjectID:   t.SubjectID,
		TopicID:     t.TopicID,
		TopicTitle:  t.Topic,
		Difficulty:  t.Level,
		Grade:       grade,
		Questions:   content.Sanitize(questions),
		GeneratedAt: now.UnixMilli(),
	}, nil
}

// AdaptiveTest returns one of the caller's cached adaptive tests without
// its answer key.
func (s *Service) AdaptiveTest(ctx context.Context, caller content.Caller, key string) (AdaptiveResult, error) {
	t, err := s.store.GetAdaptiveTest(ctx, caller.UID, key)
	if errors.Is(err, content.ErrNotFound) {
		return AdaptiveResult{}, apierr.NotFound(fmt.Errorf("adaptive test %s not found", key))
	}
	if err != nil {
		return AdaptiveResult{}, err
	}
	return AdaptiveResult{
		Success:     true,
		TestKey:     t.Key,
		SubjectID:   t.SubjectID,
		TopicID:     t.TopicID,
		TopicTitle:  t.Topic,
		Difficulty:  t.Level,
		Questions:   content.Sanitize(t.Questions),
		GeneratedAt: t.CreatedAt.UnixMilli(),
	}, nil
}
