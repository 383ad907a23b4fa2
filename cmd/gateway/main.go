package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	api "github.com/mind-engage/skillway/internal/api/http"
	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/config"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/db"
	"github.com/mind-engage/skillway/internal/exam"
	"github.com/mind-engage/skillway/internal/generation"
	"github.com/mind-engage/skillway/internal/grading"
	"github.com/mind-engage/skillway/internal/ingest"
	"github.com/mind-engage/skillway/internal/knowledge"
	"github.com/mind-engage/skillway/internal/lease"
	"github.com/mind-engage/skillway/internal/llm"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/metrics"
	"github.com/mind-engage/skillway/internal/storage"
	syncx "github.com/mind-engage/skillway/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", "driver", cfg.DBDriver, "error", err)
	}
	defer dbh.Close()

	store := content.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)
	m := metrics.New()

	// --- Generation lease: Redis when shared across instances ---
	var locker lease.Locker = lease.NewMemory()
	if cfg.RedisAddr != "" {
		rl, err := lease.DialRedis(ctx, log, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis lease unavailable", "addr", cfg.RedisAddr, "error", err)
		}
		defer rl.Close()
		locker = rl
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, log, events)
	if err != nil {
		log.Fatal("llm provider", "provider", cfg.LLM.Provider, "error", err)
	}

	blobs, err := storage.NewFSStore(filepath.Join(cfg.BlobBasePath, "blobs"))
	if err != nil {
		log.Fatal("blob store", "error", err)
	}

	// --- Services ---
	levels := knowledge.NewService(store)
	grader := grading.NewGrader(grading.WithPassThreshold(cfg.PassThreshold))
	exams := exam.NewService(store, grader, levels, events, log,
		exam.WithMetrics(m),
		exam.WithDefaultDuration(int(cfg.DefaultSessionDuration/time.Second)),
		exam.WithGrace(cfg.SessionGrace),
	)
	gen := generation.NewService(store, provider, locker, levels, events, log,
		generation.Config{
			Cooldown:    cfg.GenerationCooldown,
			Timeout:     cfg.LLM.Timeout,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		generation.WithMetrics(m),
	)
	ing := ingest.NewService(store, blobs, events, log,
		ingest.WithMetrics(m),
		ingest.WithLimits(ingest.Limits{MaxRows: cfg.Ingest.MaxRows, MaxBytes: cfg.Ingest.MaxBytes}),
	)
	tokens := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)
	accounts := auth.NewAccounts(store, tokens, log, auth.WithAdminEmail(cfg.AdminEmail))

	// --- Router ---
	handler := api.NewRouter(api.Deps{
		Store:       store,
		Auth:        tokens,
		Accounts:    accounts,
		Exams:       exams,
		Generation:  gen,
		Ingest:      ing,
		Blobs:       blobs,
		Metrics:     m,
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
		Ready:       dbh.PingContext,
		// Generation holds a request for the whole model call, retries included.
		RequestTimeout: cfg.LLM.Timeout + 30*time.Second,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening",
			"addr", cfg.HTTPAddr,
			"mode", cfg.Mode,
			"db", cfg.DBDriver,
			"llm", cfg.LLM.Provider,
			"model", provider.ModelID(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
