package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/metrics"
	"github.com/mind-engage/skillway/internal/questionjson"
	"github.com/mind-engage/skillway/internal/storage"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

const (
	ModePreview = "preview"
	ModeCommit  = "commit"

	PreviewRows = 10
)

// Upload is a spreadsheet sent by a teacher. Mapping, when given, overrides
// the automatic column mapping field by field.
type Upload struct {
	FileBase64 string            `json:"fileBase64" validate:"required"`
	FileName   string            `json:"fileName"`
	Mode       string            `json:"mode" validate:"omitempty,oneof=preview commit"`
	Mapping    map[string]string `json:"mapping,omitempty"`
}

type Preview struct {
	Success   bool        `json:"success"`
	Mode      string      `json:"mode"`
	Headers   []string    `json:"headers"`
	Mapping   Mapping     `json:"mapping"`
	Preview   []RowReport `json:"preview"`
	Report    Report      `json:"report"`
	TotalRows int         `json:"totalRows"`
}

type CommitResult struct {
	Success     bool   `json:"success"`
	Mode        string `json:"mode"`
	UploadID    string `json:"uploadId"`
	NewSubjects int    `json:"newSubjects"`
	NewLessons  int    `json:"newLessons"`
	Tests       int    `json:"tests"`
}

type Service struct {
	store   content.Store
	blobs   storage.BlobStore
	events  syncx.Appender
	log     *logger.Logger
	metrics *metrics.Metrics
	limits  Limits
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

// NewService builds the ingestion service. blobs may be nil, in which case
// uploads are not archived.
func NewService(store content.Store, blobs storage.BlobStore, events syncx.Appender, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		blobs:  blobs,
		events: events,
		log:    log.With("service", "ingest"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.limits = s.limits.withDefaults()
	return s
}

type parsed struct {
	table   Table
	raw     []byte
	mapping Mapping
	report  Report
}

func (s *Service) parse(up Upload) (parsed, error) {
	t, raw, err := Decode(up.FileBase64, up.FileName, s.limits)
	if err != nil {
		return parsed{}, err
	}
	m := AutoMap(t.Headers)
	for f, h := range up.Mapping {
		if !ValidField(f) {
			return parsed{}, apierr.Validationf("unknown field %q in mapping", f)
		}
		if h == "" {
			delete(m, Field(f))
			continue
		}
		if t.Column(h) < 0 {
			return parsed{}, apierr.Validationf("mapping refers to missing column %q", h)
		}
		m[Field(f)] = h
	}
	if m[FieldSubject] == "" || m[FieldTitle] == "" {
		return parsed{}, apierr.Validationf("missing required columns for subject and title, found %s",
			strings.Join(t.Headers, ", "))
	}
	return parsed{table: t, raw: raw, mapping: m, report: Validate(t, m)}, nil
}

// Preview maps and validates the sheet without writing anything.
func (s *Service) Preview(ctx context.Context, up Upload) (Preview, error) {
	p, err := s.parse(up)
	if err != nil {
		return Preview{}, err
	}
	s.metrics.AddIngestRows(ModePreview, len(p.table.Rows))
	head := p.report.Rows
	if len(head) > PreviewRows {
		head = head[:PreviewRows]
	}
	return Preview{
		Success:   true,
		Mode:      ModePreview,
		Headers:   p.table.Headers,
		Mapping:   p.mapping,
		Preview:   head,
		Report:    p.report,
		TotalRows: len(p.table.Rows),
	}, nil
}

// Commit imports a sheet without errors as one catalog batch. Rows join an
// existing subject when the subject name matches, ignoring case and
// punctuation; each subject's path is rebuilt in lesson order.
func (s *Service) Commit(ctx context.Context, caller content.Caller, up Upload) (CommitResult, error) {
	if !caller.Role.CanAuthor() {
		return CommitResult{}, apierr.Forbidden(errors.New("teachers only"))
	}
	p, err := s.parse(up)
	if err != nil {
		return CommitResult{}, err
	}
	if p.report.ErrorCount > 0 {
		return CommitResult{}, apierr.Validation(&ReportError{Report: p.report})
	}

	existing, err := s.store.ListSubjects(ctx)
	if err != nil {
		return CommitResult{}, err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	uploadID := "upload_" + uuid.NewString()
	b := buildBatch(existing, p.report, caller.UID, now, s.log)

	b.Log = content.UploadLog{
		ID:          uploadID,
		FileName:    up.FileName,
		UID:         caller.UID,
		RowCount:    len(p.table.Rows),
		NewSubjects: b.newSubjects,
		NewLessons:  len(b.Lessons),
		CreatedAt:   now,
	}
	if s.blobs != nil {
		name := path.Base(strings.ReplaceAll(up.FileName, "\\", "/"))
		if name == "" || name == "." || name == "/" {
			name = "upload"
		}
		key, err := s.blobs.Put(ctx, path.Join("uploads", uploadID, name), bytes.NewReader(p.raw))
		if err != nil {
			return CommitResult{}, fmt.Errorf("archive upload: %w", err)
		}
		b.Log.BlobKey = key
	}
	if err := s.store.CommitCatalog(ctx, b.CatalogBatch); err != nil {
		if s.blobs != nil && b.Log.BlobKey != "" {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), b.Log.BlobKey); derr != nil {
				s.log.Warn("archived upload not removed", "key", b.Log.BlobKey, "error", derr)
			}
		}
		return CommitResult{}, err
	}

	s.metrics.AddIngestRows(ModeCommit, len(p.table.Rows))
	if err := s.events.Append(ctx, syncx.TypeCatalogUploaded, uploadID, b.Log); err != nil {
		s.log.Warn("event append failed", "type", syncx.TypeCatalogUploaded, "error", err)
	}
	s.log.Info("catalog committed",
		"upload_id", uploadID,
		"uid", caller.UID,
		"rows", len(p.table.Rows),
		"new_subjects", b.newSubjects,
		"new_lessons", len(b.Lessons),
	)
	return CommitResult{
		Success:     true,
		Mode:        ModeCommit,
		UploadID:    uploadID,
		NewSubjects: b.newSubjects,
		NewLessons:  len(b.Lessons),
		Tests:       len(b.Tests),
	}, nil
}

type batch struct {
	content.CatalogBatch
	newSubjects int
}

func buildBatch(existing []content.Subject, rep Report, uid string, now time.Time, log *logger.Logger) batch {
	byKey := make(map[string]*content.Subject, len(existing))
	for i := range existing {
		sb := existing[i]
		if _, dup := byKey[content.NameKey(sb.Name)]; !dup {
			byKey[content.NameKey(sb.Name)] = &sb
		}
	}

	var (
		out     batch
		touched []*content.Subject
		seen    = map[*content.Subject]bool{}
	)
	for _, rr := range rep.Rows {
		r := rr.Data
		key := content.NameKey(r.Subject)
		sb := byKey[key]
		if sb == nil {
			sb = &content.Subject{
				ID:        "S-" + uuid.NewString(),
				Name:      r.Subject,
				CreatedBy: uid,
				CreatedAt: now,
				Lessons:   map[string]content.Lesson{},
			}
			byKey[key] = sb
			out.newSubjects++
		}
		if sb.Lessons == nil {
			sb.Lessons = map[string]content.Lesson{}
		}
		if !seen[sb] {
			seen[sb] = true
			touched = append(touched, sb)
		}
		grade := *r.Grade
		sb.Classes = addClass(sb.Classes, grade)

		l := content.Lesson{
			ID:         "L-" + uuid.NewString(),
			SubjectID:  sb.ID,
			Title:      r.Title,
			Order:      *r.Order,
			Homework:   r.Homework,
			Sinf:       &grade,
			Difficulty: r.Difficulty,
			Resource:   r.Resource,
			UploadedBy: uid,
			CreatedAt:  now,
		}
		if r.Test != "" && validTestFormat(r.Test) && strings.HasPrefix(strings.TrimSpace(r.Test), "{") {
			res, err := questionjson.Parse(r.Test)
			if err != nil {
				log.Debug("embedded test skipped", "row", r.Index, "error", err)
			} else {
				l.TestGenerated = true
				out.Tests = append(out.Tests, content.Test{
					SubjectID: sb.ID,
					LessonID:  l.ID,
					Topic:     r.Title,
					Questions: res.Questions,
					CreatedAt: now,
				})
			}
		}
		sb.Lessons[l.ID] = l
		out.Lessons = append(out.Lessons, l)
	}

	for _, sb := range touched {
		sb.Path = orderedPath(sb.Lessons)
		out.Subjects = append(out.Subjects, *sb)
	}
	return out
}

func addClass(classes []int, grade int) []int {
	for _, c := range classes {
		if c == grade {
			return classes
		}
	}
	out := append(append([]int(nil), classes...), grade)
	sort.Ints(out)
	return out
}

// orderedPath lists lesson ids by Order, oldest first among equal orders.
func orderedPath(lessons map[string]content.Lesson) []string {
	ls := make([]content.Lesson, 0, len(lessons))
	for _, l := range lessons {
		ls = append(ls, l)
	}
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].Order != ls[j].Order {
			return ls[i].Order < ls[j].Order
		}
		if !ls[i].CreatedAt.Equal(ls[j].CreatedAt) {
			return ls[i].CreatedAt.Before(ls[j].CreatedAt)
		}
		return ls[i].ID < ls[j].ID
	})
	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	return ids
}
