package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

var _ Store = (*SQLStore)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

func ms(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMS(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// ---- users ----

const userCols = `uid,email,display_name,password_hash,role,grade,streak,last_active,last_level_update,created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var role string
	var lastActive, lastLevel, created int64
	if err := row.Scan(&u.UID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &u.Grade, &u.Streak,
		&lastActive, &lastLevel, &created); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.LastActive = fromMS(lastActive)
	u.LastLevelUpdate = fromMS(lastLevel)
	u.CreatedAt = fromMS(created)
	return u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email=$1`, strings.ToLower(u.Email)).Scan(&exists)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO users (`+userCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			u.UID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, string(u.Role), u.Grade, u.Streak,
			ms(u.LastActive), ms(u.LastLevelUpdate), ms(u.CreatedAt))
		return err
	})
}

func (s *SQLStore) GetUser(ctx context.Context, uid string) (User, error) {
	return s.loadUser(ctx, s.db, `WHERE uid=$1`, uid)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.loadUser(ctx, s.db, `WHERE email=$1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLStore) loadUser(ctx context.Context, q queryer, where string, arg any) (User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users `+where, arg))
	if err != nil {
		return User{}, notFound(err, "user")
	}
	if err := s.loadUserMaps(ctx, q, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) loadUserMaps(ctx context.Context, q queryer, u *User) error {
	u.Progress = map[string]map[string]int{}
	u.KnowledgeLevels = map[string]string{}

	rows, err := q.QueryContext(ctx, `SELECT subject_id, lesson_id, score FROM progress WHERE uid=$1`, u.UID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var subj, lesson string
		var score int
		if err := rows.Scan(&subj, &lesson, &score); err != nil {
			rows.Close()
			return err
		}
		if u.Progress[subj] == nil {
			u.Progress[subj] = map[string]int{}
		}
		u.Progress[subj][lesson] = score
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `SELECT subject_id, level FROM knowledge_levels WHERE uid=$1`, u.UID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var subj, level string
		if err := rows.Scan(&subj, &level); err != nil {
			return err
		}
		u.KnowledgeLevels[subj] = level
	}
	return rows.Err()
}

func (s *SQLStore) UpdateUser(ctx context.Context, uid string, p UserPatch) (User, error) {
	var out User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if p.Role != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET role=$1 WHERE uid=$2`, string(*p.Role), uid); err != nil {
				return err
			}
		}
		if p.Grade != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET grade=$1 WHERE uid=$2`, *p.Grade, uid); err != nil {
				return err
			}
		}
		u, err := s.loadUser(ctx, tx, `WHERE uid=$1`, uid)
		out = u
		return err
	})
	return out, err
}

func (s *SQLStore) ListUsers(ctx context.Context, role Role) ([]User, error) {
	query := `SELECT ` + userCols + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=$1`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range users {
		if err := s.loadUserMaps(ctx, s.db, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *SQLStore) SetKnowledgeLevel(ctx context.Context, uid, subjectID, level string, at time.Time) error {
	return s.SetKnowledgeLevels(ctx, uid, map[string]string{subjectID: level}, at)
}

func (s *SQLStore) SetKnowledgeLevels(ctx context.Context, uid string, levels map[string]string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, uid); err != nil {
			return err
		}
		for subj, level := range levels {
			if err := upsertLevel(ctx, tx, uid, subj, level, at); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE users SET last_level_update=$1 WHERE uid=$2`, ms(at), uid)
		return err
	})
}

func requireUser(ctx context.Context, q queryer, uid string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE uid=$1`, uid).Scan(&one)
	return notFound(err, "user")
}

func upsertLevel(ctx context.Context, q queryer, uid, subjectID, level string, at time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO knowledge_levels (uid,subject_id,level,updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (uid,subject_id) DO UPDATE SET level=EXCLUDED.level, updated_at=EXCLUDED.updated_at`,
		uid, subjectID, level, ms(at))
	return err
}

// ---- catalog ----

const subjectCols = `id,name,icon,classes_json,path_json,created_by,created_at`

func scanSubject(row interface{ Scan(...any) error }) (Subject, error) {
	var sb Subject
	var classes, path string
	var created int64
	if err := row.Scan(&sb.ID, &sb.Name, &sb.Icon, &classes, &path, &sb.CreatedBy, &created); err != nil {
		return Subject{}, err
	}
	if err := json.Unmarshal([]byte(classes), &sb.Classes); err != nil {
		return Subject{}, fmt.Errorf("subject %s classes: %w", sb.ID, err)
	}
	if err := json.Unmarshal([]byte(path), &sb.Path); err != nil {
		return Subject{}, fmt.Errorf("subject %s path: %w", sb.ID, err)
	}
	sb.CreatedAt = fromMS(created)
	sb.Lessons = map[string]Lesson{}
	return sb, nil
}

const lessonCols = `id,subject_id,title,ord,homework,sinf,difficulty,resource,test_generated,last_generated,uploaded_by,created_at`

func scanLesson(row interface{ Scan(...any) error }) (Lesson, error) {
	var l Lesson
	var sinf, lastGen sql.NullInt64
	var generated int
	var created int64
	if err := row.Scan(&l.ID, &l.SubjectID, &l.Title, &l.Order, &l.Homework, &sinf, &l.Difficulty, &l.Resource,
		&generated, &lastGen, &l.UploadedBy, &created); err != nil {
		return Lesson{}, err
	}
	if sinf.Valid {
		g := int(sinf.Int64)
		l.Sinf = &g
	}
	if lastGen.Valid {
		t := fromMS(lastGen.Int64)
		l.LastGenerated = &t
	}
	l.TestGenerated = generated != 0
	l.CreatedAt = fromMS(created)
	return l, nil
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subjectCols+` FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var out []Subject
	index := map[string]int{}
	for rows.Next() {
		sb, err := scanSubject(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[sb.ID] = len(out)
		out = append(out, sb)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT `+lessonCols+` FROM lessons`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[l.SubjectID]; ok {
			out[i].Lessons[l.ID] = l
		}
	}
	return out, rows.Err()
}

func (s *SQLStore) GetSubject(ctx context.Context, id string) (Subject, error) {
	return s.loadSubject(ctx, s.db, `WHERE id=$1`, id)
}

func (s *SQLStore) FindSubjectByName(ctx context.Context, name string) (Subject, error) {
	return s.loadSubject(ctx, s.db, `WHERE name_key=$1`, NameKey(name))
}

func (s *SQLStore) loadSubject(ctx context.Context, q queryer, where string, arg any) (Subject, error) {
	sb, err := scanSubject(q.QueryRowContext(ctx, `SELECT `+subjectCols+` FROM subjects `+where+` ORDER BY created_at LIMIT 1`, arg))
	if err != nil {
		return Subject{}, notFound(err, "subject")
	}
	rows, err := q.QueryContext(ctx, `SELECT `+lessonCols+` FROM lessons WHERE subject_id=$1`, sb.ID)
	if err != nil {
		return Subject{}, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return Subject{}, err
		}
		sb.Lessons[l.ID] = l
	}
	return sb, rows.Err()
}

func (s *SQLStore) GetLesson(ctx context.Context, subjectID, lessonID string) (Lesson, error) {
	l, err := scanLesson(s.db.QueryRowContext(ctx, `SELECT `+lessonCols+` FROM lessons WHERE subject_id=$1 AND id=$2`,
		subjectID, lessonID))
	if err != nil {
		return Lesson{}, notFound(err, "lesson")
	}
	return l, nil
}

func (s *SQLStore) CommitCatalog(ctx context.Context, b CatalogBatch) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sb := range b.Subjects {
			if err := upsertSubject(ctx, tx, sb); err != nil {
				return fmt.Errorf("subject %s: %w", sb.ID, err)
			}
		}
		for _, l := range b.Lessons {
			if err := insertLesson(ctx, tx, l); err != nil {
				return fmt.Errorf("lesson %s: %w", l.ID, err)
			}
		}
		for _, t := range b.Tests {
			if err := upsertTest(ctx, tx, t); err != nil {
				return fmt.Errorf("test %s/%s: %w", t.SubjectID, t.LessonID, err)
			}
		}
		if b.Log.ID == "" {
			return nil
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO upload_logs (id,file_name,uid,row_count,new_subjects,new_lessons,blob_key,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			b.Log.ID, b.Log.FileName, b.Log.UID, b.Log.RowCount, b.Log.NewSubjects, b.Log.NewLessons, b.Log.BlobKey, ms(b.Log.CreatedAt))
		return err
	})
}

func upsertSubject(ctx context.Context, q queryer, sb Subject) error {
	classes := sb.Classes
	if classes == nil {
		classes = []int{}
	}
	sort.Ints(classes)
	cj, err := json.Marshal(classes)
	if err != nil {
		return err
	}
	path := sb.Path
	if path == nil {
		path = []string{}
	}
	pj, err := json.Marshal(path)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO subjects (id,name,name_key,icon,classes_json,path_json,created_by,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET classes_json=EXCLUDED.classes_json, path_json=EXCLUDED.path_json`,
		sb.ID, sb.Name, NameKey(sb.Name), sb.Icon, string(cj), string(pj), sb.CreatedBy, ms(sb.CreatedAt))
	return err
}

func insertLesson(ctx context.Context, q queryer, l Lesson) error {
	var sinf, lastGen any
	if l.Sinf != nil {
		sinf = *l.Sinf
	}
	if l.LastGenerated != nil {
		lastGen = ms(*l.LastGenerated)
	}
	_, err := q.ExecContext(ctx, `INSERT INTO lessons (`+lessonCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		l.ID, l.SubjectID, l.Title, l.Order, l.Homework, sinf, l.Difficulty, l.Resource,
		boolInt(l.TestGenerated), lastGen, l.UploadedBy, ms(l.CreatedAt))
	return err
}

// ---- tests ----

func upsertTest(ctx context.Context, q queryer, t Test) error {
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	var dur any
	if t.DurationSec != nil {
		dur = *t.DurationSec
	}
	_, err = q.ExecContext(ctx, `INSERT INTO tests (subject_id,lesson_id,topic,questions_json,duration_sec,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (subject_id,lesson_id) DO UPDATE SET topic=EXCLUDED.topic, questions_json=EXCLUDED.questions_json,
			duration_sec=EXCLUDED.duration_sec, created_at=EXCLUDED.created_at`,
		t.SubjectID, t.LessonID, t.Topic, string(qj), dur, ms(t.CreatedAt))
	return err
}

func (s *SQLStore) GetTest(ctx context.Context, subjectID, lessonID string) (Test, error) {
	var t Test
	var qj string
	var dur sql.NullInt64
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT subject_id,lesson_id,topic,questions_json,duration_sec,created_at
		FROM tests WHERE subject_id=$1 AND lesson_id=$2`, subjectID, lessonID).
		Scan(&t.SubjectID, &t.LessonID, &t.Topic, &qj, &dur, &created)
	if err != nil {
		return Test{}, notFound(err, "test")
	}
	if err := json.Unmarshal([]byte(qj), &t.Questions); err != nil {
		return Test{}, fmt.Errorf("test %s/%s questions: %w", subjectID, lessonID, err)
	}
	if dur.Valid {
		d := int(dur.Int64)
		t.DurationSec = &d
	}
	t.CreatedAt = fromMS(created)
	return t, nil
}

func (s *SQLStore) SaveGeneratedTest(ctx context.Context, t Test) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE lessons SET test_generated=1, last_generated=$1 WHERE subject_id=$2 AND id=$3`,
			ms(t.CreatedAt), t.SubjectID, t.LessonID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("lesson %s/%s: %w", t.SubjectID, t.LessonID, ErrNotFound)
		}
		return upsertTest(ctx, tx, t)
	})
}

func (s *SQLStore) SaveAdaptiveTest(ctx context.Context, uid string, t AdaptiveTest) error {
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO adaptive_tests (uid,test_key,subject_id,topic_id,topic,level,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (uid,test_key) DO UPDATE SET topic=EXCLUDED.topic, questions_json=EXCLUDED.questions_json,
			created_at=EXCLUDED.created_at`,
		uid, t.Key, t.SubjectID, t.TopicID, t.Topic, t.Level, string(qj), ms(t.CreatedAt))
	return err
}

func (s *SQLStore) GetAdaptiveTest(ctx context.Context, uid, key string) (AdaptiveTest, error) {
	var t AdaptiveTest
	var qj string
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT test_key,subject_id,topic_id,topic,level,questions_json,created_at
		FROM adaptive_tests WHERE uid=$1 AND test_key=$2`, uid, key).
		Scan(&t.Key, &t.SubjectID, &t.TopicID, &t.Topic, &t.Level, &qj, &created)
	if err != nil {
		return AdaptiveTest{}, notFound(err, "adaptive test")
	}
	if err := json.Unmarshal([]byte(qj), &t.Questions); err != nil {
		return AdaptiveTest{}, err
	}
	t.CreatedAt = fromMS(created)
	return t, nil
}

// ---- sessions & submissions ----

func (s *SQLStore) PutSession(ctx context.Context, a ActiveSession) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO active_sessions (uid,subject_id,lesson_id,start_time,duration_sec)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (uid,subject_id,lesson_id) DO UPDATE SET start_time=EXCLUDED.start_time, duration_sec=EXCLUDED.duration_sec`,
		a.UID, a.SubjectID, a.LessonID, a.StartTime.UnixMilli(), a.DurationSec)
	return err
}

func (s *SQLStore) TakeSession(ctx context.Context, uid, subjectID, lessonID string) (ActiveSession, error) {
	out := ActiveSession{UID: uid, SubjectID: subjectID, LessonID: lessonID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var start int64
		err := tx.QueryRowContext(ctx, `SELECT start_time, duration_sec FROM active_sessions
			WHERE uid=$1 AND subject_id=$2 AND lesson_id=$3`, uid, subjectID, lessonID).Scan(&start, &out.DurationSec)
		if err != nil {
			return notFound(err, "session")
		}
		out.StartTime = time.UnixMilli(start).UTC()
		_, err = tx.ExecContext(ctx, `DELETE FROM active_sessions WHERE uid=$1 AND subject_id=$2 AND lesson_id=$3`,
			uid, subjectID, lessonID)
		return err
	})
	return out, err
}

func (s *SQLStore) RecordSubmission(ctx context.Context, r SubmissionResult) error {
	a := r.Attempt
	at := ms(a.SubmittedAt)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUser(ctx, tx, a.UID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO progress (uid,subject_id,lesson_id,score,updated_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (uid,subject_id,lesson_id) DO UPDATE SET score=EXCLUDED.score, updated_at=EXCLUDED.updated_at`,
			a.UID, a.SubjectID, a.LessonID, a.Score, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET last_active=$1, streak=$2 WHERE uid=$3`,
			at, r.Streak, a.UID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO attempts (id,uid,subject_id,lesson_id,score,correct_count,total,over_time,elapsed_sec,submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			a.ID, a.UID, a.SubjectID, a.LessonID, a.Score, a.CorrectCount, a.Total, boolInt(a.OverTime), a.ElapsedSec, at); err != nil {
			return err
		}
		if !r.LevelChanged {
			return nil
		}
		if err := upsertLevel(ctx, tx, a.UID, a.SubjectID, r.Level, a.SubmittedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE users SET last_level_update=$1 WHERE uid=$2`, at, a.UID)
		return err
	})
}

func (s *SQLStore) ListAttempts(ctx context.Context, uid string, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,uid,subject_id,lesson_id,score,correct_count,total,over_time,elapsed_sec,submitted_at
		FROM attempts WHERE uid=$1 ORDER BY submitted_at DESC LIMIT $2`, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		var over int
		var at int64
		if err := rows.Scan(&a.ID, &a.UID, &a.SubjectID, &a.LessonID, &a.Score, &a.CorrectCount, &a.Total,
			&over, &a.ElapsedSec, &at); err != nil {
			return nil, err
		}
		a.OverTime = over != 0
		a.SubmittedAt = fromMS(at)
		out = append(out, a)
	}
	return out, rows.Err()
}
