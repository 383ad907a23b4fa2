package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:skillway.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/skillway?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// sqlite serializes writers anyway; one connection keeps
		// transactions from tripping over SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private in-memory sqlite database with the schema
// applied. Each call gets its own database.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:mem-%s?mode=memory&cache=shared", uuid.NewString())
	return Open(ctx, DriverSQLite, dsn)
}

// EnsureSchema creates missing tables. Safe to run repeatedly.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Times are unix milliseconds; booleans are 0/1 integers on both backends.
const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  uid TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  grade INTEGER NOT NULL DEFAULT 0,
  streak INTEGER NOT NULL DEFAULT 0,
  last_active INTEGER NOT NULL DEFAULT 0,
  last_level_update INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subjects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  name_key TEXT NOT NULL,
  icon TEXT NOT NULL DEFAULT '',
  classes_json TEXT NOT NULL DEFAULT '[]',
  path_json TEXT NOT NULL DEFAULT '[]',
  created_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subjects_name_key ON subjects(name_key);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  ord INTEGER NOT NULL,
  homework TEXT NOT NULL DEFAULT '',
  sinf INTEGER,
  difficulty TEXT NOT NULL DEFAULT '',
  resource TEXT NOT NULL DEFAULT '',
  test_generated INTEGER NOT NULL DEFAULT 0,
  last_generated INTEGER,
  uploaded_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lessons_subject ON lessons(subject_id);

CREATE TABLE IF NOT EXISTS tests (
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  questions_json TEXT NOT NULL,
  duration_sec INTEGER,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (subject_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS adaptive_tests (
  uid TEXT NOT NULL,
  test_key TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  topic_id TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  level TEXT NOT NULL,
  questions_json TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (uid, test_key)
);

CREATE TABLE IF NOT EXISTS active_sessions (
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  start_time INTEGER NOT NULL,
  duration_sec INTEGER NOT NULL,
  PRIMARY KEY (uid, subject_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS progress (
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (uid, subject_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS knowledge_levels (
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  level TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (uid, subject_id)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  correct_count INTEGER NOT NULL,
  total INTEGER NOT NULL,
  over_time INTEGER NOT NULL DEFAULT 0,
  elapsed_sec INTEGER NOT NULL,
  submitted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_uid ON attempts(uid);

CREATE TABLE IF NOT EXISTS upload_logs (
  id TEXT PRIMARY KEY,
  file_name TEXT NOT NULL,
  uid TEXT NOT NULL,
  row_count INTEGER NOT NULL,
  new_subjects INTEGER NOT NULL,
  new_lessons INTEGER NOT NULL,
  blob_key TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  typ TEXT NOT NULL,   -- e.g., AttemptSubmitted
  key TEXT NOT NULL,   -- natural key: attempt id, test key
  data TEXT NOT NULL,  -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  uid TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  grade INTEGER NOT NULL DEFAULT 0,
  streak INTEGER NOT NULL DEFAULT 0,
  last_active BIGINT NOT NULL DEFAULT 0,
  last_level_update BIGINT NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS subjects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  name_key TEXT NOT NULL,
  icon TEXT NOT NULL DEFAULT '',
  classes_json TEXT NOT NULL DEFAULT '[]',
  path_json TEXT NOT NULL DEFAULT '[]',
  created_by TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subjects_name_key ON subjects(name_key);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  ord INTEGER NOT NULL,
  homework TEXT NOT NULL DEFAULT '',
  sinf INTEGER,
  difficulty TEXT NOT NULL DEFAULT '',
  resource TEXT NOT NULL DEFAULT '',
  test_generated INTEGER NOT NULL DEFAULT 0,
  last_generated BIGINT,
  uploaded_by TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lessons_subject ON lessons(subject_id);

CREATE TABLE IF NOT EXISTS tests (
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  questions_json TEXT NOT NULL,
  duration_sec INTEGER,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (subject_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS adaptive_tests (
  uid TEXT NOT NULL,
  test_key TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  topic_id TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  level TEXT NOT NULL,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (uid, test_key)
);

CREATE TABLE IF NOT EXISTS active_sessions (
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  start_time BIGINT NOT NULL,
  duration_sec INTEGER NOT NULL,
  PRIMARY KEY (uid, subject_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS progress (
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (uid, subject_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS knowledge_levels (
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  level TEXT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (uid, subject_id)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  uid TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  correct_count INTEGER NOT NULL,
  total INTEGER NOT NULL,
  over_time INTEGER NOT NULL DEFAULT 0,
  elapsed_sec BIGINT NOT NULL,
  submitted_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_uid ON attempts(uid);

CREATE TABLE IF NOT EXISTS upload_logs (
  id TEXT PRIMARY KEY,
  file_name TEXT NOT NULL,
  uid TEXT NOT NULL,
  row_count INTEGER NOT NULL,
  new_subjects INTEGER NOT NULL,
  new_lessons INTEGER NOT NULL,
  blob_key TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
