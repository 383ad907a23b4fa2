package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"
)

// Event types written to the audit log.
const (
	TypeTestGenerated         = "TestGenerated"
	TypeAdaptiveTestGenerated = "AdaptiveTestGenerated"
	TypeAttemptSubmitted      = "AttemptSubmitted"
	TypeCatalogUploaded       = "CatalogUploaded"
	TypeAssessmentCompleted   = "AssessmentCompleted"
	TypeLLMRequest            = "LLMRequest"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Appender records audit events. Implementations must be safe for
// concurrent use.
type Appender interface {
	Append(ctx context.Context, typ, key string, data any) error
}

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), r.now().UnixMilli())
	return err
}

// List returns the newest events first. An empty typ matches every type.
func (r *EventRepo) List(ctx context.Context, typ string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT seq, typ, key, data, created_at FROM event_log`
	args := []any{}
	if typ != "" {
		query += ` WHERE typ=$1 ORDER BY seq DESC LIMIT $2`
		args = append(args, typ, limit)
	} else {
		query += ` ORDER BY seq DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var data string
		var at int64
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &data, &at); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		e.CreatedAt = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// MemoryLog is an in-process Appender, used in tests and dry runs.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryLog) Append(_ context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Seq: int64(len(m.events) + 1), Type: typ, Key: key, Data: buf, CreatedAt: time.Now()})
	return nil
}

// Events returns a copy of the recorded events, optionally filtered by type.
func (m *MemoryLog) Events(typ string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
