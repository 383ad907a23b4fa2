package content

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Store is the content store. Every method is one transaction.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, uid string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, uid string, p UserPatch) (User, error)
	ListUsers(ctx context.Context, role Role) ([]User, error)
	SetKnowledgeLevel(ctx context.Context, uid, subjectID, level string, at time.Time) error
	SetKnowledgeLevels(ctx context.Context, uid string, levels map[string]string, at time.Time) error

	ListSubjects(ctx context.Context) ([]Subject, error)
	GetSubject(ctx context.Context, id string) (Subject, error)
	FindSubjectByName(ctx context.Context, name string) (Subject, error)
	GetLesson(ctx context.Context, subjectID, lessonID string) (Lesson, error)
	CommitCatalog(ctx context.Context, b CatalogBatch) error

	GetTest(ctx context.Context, subjectID, lessonID string) (Test, error)
	// SaveGeneratedTest replaces the lesson's bank and marks the lesson
	// generated at t.CreatedAt.
	SaveGeneratedTest(ctx context.Context, t Test) error
	SaveAdaptiveTest(ctx context.Context, uid string, t AdaptiveTest) error
	GetAdaptiveTest(ctx context.Context, uid, key string) (AdaptiveTest, error)

	PutSession(ctx context.Context, s ActiveSession) error
	// TakeSession reads and deletes the session. ErrNotFound when absent.
	TakeSession(ctx context.Context, uid, subjectID, lessonID string) (ActiveSession, error)
	RecordSubmission(ctx context.Context, r SubmissionResult) error
	ListAttempts(ctx context.Context, uid string, limit int) ([]Attempt, error)
}

var nonAlnum = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// NameKey folds a subject name for duplicate detection.
func NameKey(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
}
