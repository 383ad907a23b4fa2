package generation

import (
	"context"
	"strings"
	"time"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/knowledge"
	"github.com/mind-engage/skillway/internal/questionjson"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

// QuestionsPerSubject is how many diagnostic questions are requested per
// subject: one easy, one medium.
const QuestionsPerSubject = 2

const (
	diagnosticTemperature = 0.6
	diagnosticMaxTokens   = 3000
)

// DefaultSubjects lists the diagnostic subjects for a grade.
func DefaultSubjects(grade int) []string {
	if grade <= 4 {
		return []string{"Matematika", "Ona tili", "O'qish"}
	}
	return []string{"Matematika", "Fizika", "Ingliz tili"}
}

type AssessInput struct {
	Grade    int      `json:"grade" validate:"required,min=1,max=11"`
	Subjects []string `json:"subjects,omitempty" validate:"omitempty,max=6,dive,required"`
}

type AssessmentSection struct {
	Subject   string             `json:"subject"`
	Questions []content.Question `json:"questions"`
}

// Assessment is a self-scored placement test; the client reports per-subject
// scores back through SaveAssessment.
type Assessment struct {
	Success        bool                `json:"success"`
	Grade          int                 `json:"grade"`
	Subjects       []AssessmentSection `json:"subjects"`
	TotalQuestions int                 `json:"totalQuestions"`
	GeneratedAt    int64               `json:"generatedAt"`
}

// Assess generates the diagnostic test for a grade.
func (s *Service) Assess(ctx context.Context, in AssessInput) (Assessment, error) {
	if in.Grade < 1 || in.Grade > 11 {
		return Assessment{}, apierr.Validationf("grade must be between 1 and 11")
	}
	subjects := make([]string, 0, len(in.Subjects))
	for _, subj := range in.Subjects {
		if subj = strings.TrimSpace(subj); subj != "" {
			subjects = append(subjects, subj)
		}
	}
	if len(subjects) == 0 {
		subjects = DefaultSubjects(in.Grade)
	}

	start := s.now()
	sections, err := ask(ctx, s, "diagnostic", systemDiagnostic, diagnosticPrompt(in.Grade, subjects), diagnosticTemperature, diagnosticMaxTokens,
		questionjson.ParseDiagnostic)
	s.observe("diagnostic", err, start)
	if err != nil {
		return Assessment{}, err
	}

	out := Assessment{Success: true, Grade: in.Grade, GeneratedAt: s.now().UnixMilli()}
	for _, sec := range sections {
		out.Subjects = append(out.Subjects, AssessmentSection{Subject: sec.Subject, Questions: sec.Questions})
		out.TotalQuestions += len(sec.Questions)
	}
	return out, nil
}

// SaveAssessment seeds the caller's knowledge levels from diagnostic scores
// keyed by subject.
func (s *Service) SaveAssessment(ctx context.Context, caller content.Caller, scores map[string]int) (map[string]knowledge.Level, error) {
	if len(scores) == 0 {
		return nil, apierr.Validationf("results are required")
	}
	for subj, score := range scores {
		if strings.TrimSpace(subj) == "" || score < 0 || score > 100 {
			return nil, apierr.Validationf("invalid score %d for %q", score, subj)
		}
	}
	levels, err := s.levels.Seed(ctx, caller.UID, scores)
	if err != nil {
		return nil, err
	}
	s.appendEvent(ctx, syncx.TypeAssessmentCompleted, caller.UID, map[string]any{
		"scores": scores,
		"at":     s.now().UTC().Format(time.RFC3339),
	})
	return levels, nil
}
