package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
)

// batchParallelism bounds concurrent model calls in GenerateMissing.
const batchParallelism = 2

// BatchResult aggregates a GenerateMissing run. A failure on one lesson
// never aborts the others.
type BatchResult struct {
	Generated int      `json:"generated"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// GenerateMissing generates banks for up to limit lessons of the subject
// that have none yet, in path order. Lessons past the limit, and lessons
// another request is already generating, count as skipped.
func (s *Service) GenerateMissing(ctx context.Context, caller content.Caller, subjectID string, limit int) (BatchResult, error) {
	if !caller.Role.CanAuthor() {
		return BatchResult{}, apierr.Forbidden(errors.New("teachers only"))
	}
	if subjectID == "" {
		return BatchResult{}, apierr.Validationf("subjectId is required")
	}
	if limit <= 0 || limit > MaxBatch {
		limit = MaxBatch
	}
	subj, err := s.store.GetSubject(ctx, subjectID)
	if errors.Is(err, content.ErrNotFound) {
		return BatchResult{}, apierr.NotFound(fmt.Errorf("subject %s not found", subjectID))
	}
	if err != nil {
		return BatchResult{}, err
	}

	var pending []content.Lesson
	for _, id := range subj.Path {
		if l, ok := subj.Lessons[id]; ok && !l.TestGenerated {
			pending = append(pending, l)
		}
	}

	var (
		mu  sync.Mutex
		out BatchResult
	)
	if len(pending) > limit {
		out.Skipped = len(pending) - limit
		pending = pending[:limit]
	}

	var g errgroup.Group
	g.SetLimit(batchParallelism)
	for _, l := range pending {
		g.Go(func() error {
			_, err := s.generateLesson(ctx, caller, GenerateInput{
				Topic:     l.Title,
				SubjectID: subjectID,
				LessonID:  l.ID,
				Grade:     lessonGrade(l),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out.Generated++
			case apierr.HasCode(err, apierr.CodeGenerationInProgress):
				out.Skipped++
			default:
				out.Failed++
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", l.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("batch generation finished",
		"subject_id", subjectID,
		"generated", out.Generated,
		"failed", out.Failed,
		"skipped", out.Skipped,
	)
	return out, nil
}

func lessonGrade(l content.Lesson) int {
	if l.Sinf != nil {
		return *l.Sinf
	}
	return DefaultGrade
}
