// Package knowledge tracks a student's per-subject level.
//
// Levels move one step at a time: a score of 80 or more moves up, below 50
// moves down, anything in between keeps the level. Students without a
// recorded level start at intermediate.
package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/mind-engage/skillway/internal/content"
)

type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"

	Default = Intermediate

	PromoteAt   = 80
	DemoteBelow = 50
)

var order = []Level{Beginner, Intermediate, Advanced}

func (l Level) index() int {
	for i, o := range order {
		if o == l {
			return i
		}
	}
	return 1
}

// Parse maps a stored or user-supplied value to a Level. Unknown values
// yield Default.
func Parse(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case Beginner:
		return Beginner
	case Advanced:
		return Advanced
	case Intermediate:
		return Intermediate
	}
	return Default
}

// Valid reports whether s names a level exactly.
func Valid(s string) bool {
	switch Level(s) {
	case Beginner, Intermediate, Advanced:
		return true
	}
	return false
}

// Transition returns the level after a test scored score percent.
func Transition(score int, current Level) Level {
	i := Parse(string(current)).index()
	switch {
	case score >= PromoteAt && i < len(order)-1:
		i++
	case score < DemoteBelow && i > 0:
		i--
	}
	return order[i]
}

// FromScore places a student after the diagnostic assessment.
func FromScore(score int) Level {
	switch {
	case score >= PromoteAt:
		return Advanced
	case score >= DemoteBelow:
		return Intermediate
	default:
		return Beginner
	}
}

type Service struct {
	store content.Store
	now   func() time.Time
}

func NewService(store content.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Current returns the user's level for subjectID, or Default.
func (s *Service) Current(ctx context.Context, uid, subjectID string) (Level, error) {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	return Parse(u.KnowledgeLevels[subjectID]), nil
}

// Apply moves the user's level for subjectID according to score and
// persists it, with lastLevelUpdate, only when it changed.
func (s *Service) Apply(ctx context.Context, uid, subjectID string, score int) (Level, bool, error) {
	current, err := s.Current(ctx, uid, subjectID)
	if err != nil {
		return "", false, err
	}
	next := Transition(score, current)
	if next == current {
		return current, false, nil
	}
	if err := s.store.SetKnowledgeLevel(ctx, uid, subjectID, string(next), s.now()); err != nil {
		return "", false, err
	}
	return next, true, nil
}

// Seed stores initial levels from diagnostic scores keyed by subject.
func (s *Service) Seed(ctx context.Context, uid string, scores map[string]int) (map[string]Level, error) {
	levels := make(map[string]Level, len(scores))
	stored := make(map[string]string, len(scores))
	for subj, score := range scores {
		l := FromScore(score)
		levels[subj] = l
		stored[subj] = string(l)
	}
	if err := s.store.SetKnowledgeLevels(ctx, uid, stored, s.now()); err != nil {
		return nil, err
	}
	return levels, nil
}
