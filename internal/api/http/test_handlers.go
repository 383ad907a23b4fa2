package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/skillway/internal/exam"
	"github.com/mind-engage/skillway/internal/generation"
	"github.com/mind-engage/skillway/internal/logger"
)

// POST /api/tests/generate {topic,subjectId,lessonId,grade?,difficulty?,force?}
func GenerateTestHandler(gen *generation.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req generation.GenerateInput
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := gen.Generate(r.Context(), c, req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type generateMissingReq struct {
	SubjectID string `json:"subjectId" validate:"required,notblank"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=5"`
}

// POST /api/tests/generate-missing {subjectId,limit?}
func GenerateMissingHandler(gen *generation.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req generateMissingReq
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := gen.GenerateMissing(r.Context(), c, req.SubjectID, req.Limit)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /api/adaptive-tests/generate
func GenerateAdaptiveHandler(gen *generation.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req generation.AdaptiveInput
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := gen.GenerateAdaptive(r.Context(), c, req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /api/adaptive-tests/{testKey}
func GetAdaptiveHandler(gen *generation.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		res, err := gen.AdaptiveTest(r.Context(), c, chi.URLParam(r, "testKey"))
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type answersReq struct {
	Answers json.RawMessage `json:"answers" validate:"required"`
}

// POST /api/adaptive-tests/{testKey}/submit {answers}
func SubmitAdaptiveHandler(ex *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req answersReq
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := ex.SubmitAdaptive(r.Context(), c, chi.URLParam(r, "testKey"), req.Answers)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /api/tests?subjectId=&lessonId=
func GetTestHandler(ex *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := ex.FetchSanitized(r.Context(), q.Get("subjectId"), q.Get("lessonId"))
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /api/tests/start {subjectId,lessonId,duration?}
func StartTestHandler(ex *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req exam.StartInput
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := ex.Start(r.Context(), c, req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /api/tests/submit {subjectId,lessonId,answers}
func SubmitTestHandler(ex *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req exam.SubmitInput
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := ex.Submit(r.Context(), c, req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
