package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/ingest"
	"github.com/mind-engage/skillway/internal/logger"
)

// POST /api/catalog/upload {fileBase64,fileName,mode,mapping?}
// mode=preview (default) validates only; mode=commit imports.
func UploadCatalogHandler(ing *ingest.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req ingest.Upload
		if err := bind(w, r, &req, uploadBodyLimit); err != nil {
			fail(w, r, log, err)
			return
		}
		if req.Mode == ingest.ModeCommit {
			res, err := ing.Commit(r.Context(), c, req)
			if err != nil {
				fail(w, r, log, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
			return
		}
		res, err := ing.Preview(r.Context(), req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type subjectSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	Classes     []int    `json:"classes"`
	Path        []string `json:"path"`
	LessonCount int      `json:"lessonCount"`
}

// GET /api/subjects?grade=
// Students see the subjects offered to their grade unless grade is given.
func ListSubjectsHandler(store content.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		grade := 0
		if c.Role == content.RoleStudent {
			grade = c.Grade
		}
		if v := r.URL.Query().Get("grade"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 11 {
				fail(w, r, log, apierr.Validationf("grade must be a number between 1 and 11"))
				return
			}
			grade = n
		}
		subjects, err := store.ListSubjects(r.Context())
		if err != nil {
			fail(w, r, log, err)
			return
		}
		out := make([]subjectSummary, 0, len(subjects))
		for _, s := range subjects {
			if !s.OfferedTo(grade) {
				continue
			}
			out = append(out, subjectSummary{
				ID:          s.ID,
				Name:        s.Name,
				Icon:        s.Icon,
				Classes:     s.Classes,
				Path:        s.Path,
				LessonCount: len(s.Lessons),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"subjects": out})
	}
}

// GET /api/subjects/{subjectID}
// Lessons restricted to another grade are hidden from students.
func GetSubjectHandler(store content.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "subjectID")
		s, err := store.GetSubject(r.Context(), id)
		if errors.Is(err, content.ErrNotFound) {
			fail(w, r, log, apierr.NotFound(fmt.Errorf("subject %s not found", id)))
			return
		}
		if err != nil {
			fail(w, r, log, err)
			return
		}
		if c.Role == content.RoleStudent {
			if !s.OfferedTo(c.Grade) {
				fail(w, r, log, apierr.NotFound(fmt.Errorf("subject %s not found", id)))
				return
			}
			path := make([]string, 0, len(s.Path))
			for _, lid := range s.Path {
				l, ok := s.Lessons[lid]
				if !ok {
					continue
				}
				if l.Sinf != nil && c.Grade != 0 && *l.Sinf != c.Grade {
					delete(s.Lessons, lid)
					continue
				}
				path = append(path, lid)
			}
			s.Path = path
		}
		writeJSON(w, http.StatusOK, s)
	}
}
