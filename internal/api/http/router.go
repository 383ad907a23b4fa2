package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/skillway/internal/apierr"
	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/exam"
	"github.com/mind-engage/skillway/internal/generation"
	"github.com/mind-engage/skillway/internal/ingest"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/metrics"
	"github.com/mind-engage/skillway/internal/rbac"
	"github.com/mind-engage/skillway/internal/storage"
)

const defaultRequestTimeout = 2 * time.Minute

type Deps struct {
	Store      content.Store
	Auth       *auth.AuthService
	Accounts   *auth.Accounts
	Exams      *exam.Service
	Generation *generation.Service
	Ingest     *ingest.Service
	Blobs      storage.BlobStore // nil disables the uploads archive route
	Metrics    *metrics.Metrics  // nil disables /metrics
	Log        *logger.Logger

	CORSOrigins []string
	// Ready backs /readyz, typically a database ping.
	Ready          func(ctx context.Context) error
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(log, d.Metrics), middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		ExposedHeaders:   []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierr.Write(w, r, apierr.NotFound(errors.New("no such route")))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierr.Write(w, r, apierr.New(http.StatusMethodNotAllowed, apierr.CodeMethodNotAllowed,
			errors.New(r.Method+" is not allowed on "+r.URL.Path)))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				log.Warn("not ready", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Post("/auth/register", RegisterHandler(d.Accounts, log))
	r.Post("/auth/login", LoginHandler(d.Accounts, log))

	// Protected API (JWT -> caller from store -> RBAC)
	r.Route("/api", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth), auth.AttachCaller(d.Store))

		pr.With(rbac.Require(rbac.PermProfileView)).Get("/me", MeHandler(d.Store, log))

		pr.With(rbac.Require(rbac.PermSubjectView)).Get("/subjects", ListSubjectsHandler(d.Store, log))
		pr.With(rbac.Require(rbac.PermSubjectView)).Get("/subjects/{subjectID}", GetSubjectHandler(d.Store, log))

		// Shared lesson banks
		pr.With(rbac.Require(rbac.PermTestGenerate)).Post("/tests/generate", GenerateTestHandler(d.Generation, log))
		pr.With(rbac.Require(rbac.PermTestGenerate)).Post("/tests/generate-missing", GenerateMissingHandler(d.Generation, log))
		pr.With(rbac.Require(rbac.PermTestTake)).Get("/tests", GetTestHandler(d.Exams, log))
		pr.With(rbac.Require(rbac.PermTestTake)).Post("/tests/start", StartTestHandler(d.Exams, log))
		pr.With(rbac.Require(rbac.PermTestTake)).Post("/tests/submit", SubmitTestHandler(d.Exams, log))

		// Per-student adaptive tests
		pr.Route("/adaptive-tests", func(ar chi.Router) {
			ar.Use(rbac.RequireAny(rbac.PermAdaptiveTake, rbac.PermTestGenerate))
			ar.Post("/generate", GenerateAdaptiveHandler(d.Generation, log))
			ar.Get("/{testKey}", GetAdaptiveHandler(d.Generation, log))
			ar.Post("/{testKey}/submit", SubmitAdaptiveHandler(d.Exams, log))
		})

		pr.With(rbac.Require(rbac.PermAssessmentTake)).Post("/assessment", AssessmentHandler(d.Generation, log))
		pr.With(rbac.Require(rbac.PermAssessmentTake)).Post("/assessment/results", AssessmentResultsHandler(d.Generation, log))

		pr.With(rbac.Require(rbac.PermCatalogUpload)).Post("/catalog/upload", UploadCatalogHandler(d.Ingest, log))

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(rbac.Require(rbac.PermUserManage))
			ar.Get("/users", ListUsersHandler(d.Store, log))
			ar.Patch("/users/{uid}", UpdateUserHandler(d.Store, log))
			if d.Blobs != nil {
				ar.Route("/uploads", func(ur chi.Router) { MountUploads(ur, d.Blobs, log) })
			}
		})
	})

	return r
}
