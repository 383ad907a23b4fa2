package http

import (
	"net/http"

	"github.com/mind-engage/skillway/internal/generation"
	"github.com/mind-engage/skillway/internal/logger"
)

// POST /api/assessment {grade,subjects?}
// A missing grade falls back to the caller's grade.
func AssessmentHandler(gen *generation.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req generation.AssessInput
		if err := decode(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		if req.Grade == 0 {
			req.Grade = c.Grade
		}
		if err := check(&req); err != nil {
			fail(w, r, log, err)
			return
		}
		res, err := gen.Assess(r.Context(), req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type assessmentResultsReq struct {
	Results map[string]int `json:"results" validate:"required,min=1,dive,keys,notblank,endkeys,min=0,max=100"`
}

// POST /api/assessment/results {results:{subject:score}}
func AssessmentResultsHandler(gen *generation.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		var req assessmentResultsReq
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		levels, err := gen.SaveAssessment(r.Context(), c, req.Results)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "levels": levels})
	}
}
