package content

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// CanAuthor reports whether r may generate tests and upload curricula.
func (r Role) CanAuthor() bool { return r == RoleTeacher || r == RoleAdmin }

type Subject struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Icon      string            `json:"icon,omitempty"`
	Path      []string          `json:"path"`    // lesson ids ordered by Lesson.Order
	Classes   []int             `json:"classes"` // grades the subject is offered to
	CreatedBy string            `json:"createdBy,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Lessons   map[string]Lesson `json:"lessons,omitempty"`
}

// OfferedTo reports whether students of grade may see the subject. A subject
// without classes is offered to everyone.
func (s Subject) OfferedTo(grade int) bool {
	if len(s.Classes) == 0 || grade == 0 {
		return true
	}
	for _, c := range s.Classes {
		if c == grade {
			return true
		}
	}
	return false
}

type Lesson struct {
	ID            string     `json:"id"`
	SubjectID     string     `json:"subjectId"`
	Title         string     `json:"title"`
	Order         int        `json:"order"`
	Homework      string     `json:"homework,omitempty"`
	Sinf          *int       `json:"sinf,omitempty"` // grade restriction
	Difficulty    string     `json:"difficulty,omitempty"`
	Resource      string     `json:"resource,omitempty"`
	TestGenerated bool       `json:"testGenerated"`
	LastGenerated *time.Time `json:"lastGenerated,omitempty"`
	UploadedBy    string     `json:"uploadedBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Question is a multiple-choice item. Correct indexes Options.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// PublicQuestion is a Question with the answer key removed.
type PublicQuestion struct {
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty,omitempty"`
}

func Sanitize(qs []Question) []PublicQuestion {
	out := make([]PublicQuestion, len(qs))
	for i, q := range qs {
		out[i] = PublicQuestion{Question: q.Question, Options: q.Options, Difficulty: q.Difficulty}
	}
	return out
}

// Test is the authoritative question bank for one lesson.
type Test struct {
	SubjectID   string     `json:"subjectId"`
	LessonID    string     `json:"lessonId"`
	Topic       string     `json:"topic,omitempty"`
	Questions   []Question `json:"questions"`
	DurationSec *int       `json:"duration,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type AdaptiveTest struct {
	Key       string     `json:"testKey"`
	SubjectID string     `json:"subjectId"`
	TopicID   string     `json:"topicId"`
	Topic     string     `json:"topic"`
	Level     string     `json:"level"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
}

type User struct {
	UID             string                    `json:"uid"`
	Email           string                    `json:"email"`
	DisplayName     string                    `json:"displayName"`
	PasswordHash    string                    `json:"-"`
	Role            Role                      `json:"role"`
	Grade           int                       `json:"grade"`
	Streak          int                       `json:"streak"`
	LastActive      time.Time                 `json:"lastActive"`
	LastLevelUpdate time.Time                 `json:"lastLevelUpdate"`
	CreatedAt       time.Time                 `json:"createdAt"`
	Progress        map[string]map[string]int `json:"progress"`
	KnowledgeLevels map[string]string         `json:"knowledgeLevels"`
}

type UserPatch struct {
	Role  *Role
	Grade *int
}

type ActiveSession struct {
	UID         string
	SubjectID   string
	LessonID    string
	StartTime   time.Time
	DurationSec int
}

type Attempt struct {
	ID           string    `json:"id"`
	UID          string    `json:"uid"`
	SubjectID    string    `json:"subjectId"`
	LessonID     string    `json:"lessonId"`
	Score        int       `json:"score"`
	CorrectCount int       `json:"correctCount"`
	Total        int       `json:"total"`
	OverTime     bool      `json:"overTime"`
	ElapsedSec   int64     `json:"elapsedSec"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// SubmissionResult is everything a graded submission writes, applied in one
// transaction.
type SubmissionResult struct {
	Attempt Attempt
	Streak  int
	// Level is written when LevelChanged; LastLevelUpdate follows it.
	Level        string
	LevelChanged bool
}

type UploadLog struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	UID         string    `json:"uid"`
	RowCount    int       `json:"rowCount"`
	NewSubjects int       `json:"newSubjects"`
	NewLessons  int       `json:"newLessons"`
	BlobKey     string    `json:"blobKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CatalogBatch is a curriculum import applied atomically. Subjects are
// upserted whole (path and classes already merged), lessons and tests inserted.
type CatalogBatch struct {
	Subjects []Subject
	Lessons  []Lesson
	Tests    []Test
	Log      UploadLog
}

// Caller is the authenticated identity a request acts as. Role is always
// read from the store, never from the token.
type Caller struct {
	UID   string
	Email string
	Role  Role
	Grade int
}
