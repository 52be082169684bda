package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"review_analysis/internal/adapters/excel"
	"review_analysis/internal/adapters/gemini"
	server "review_analysis/internal/adapters/http_server"
	"review_analysis/internal/adapters/language"
	"review_analysis/internal/adapters/memstore"
	"review_analysis/internal/adapters/observability"
	redisad "review_analysis/internal/adapters/redis"
	"review_analysis/internal/app"
	"review_analysis/internal/domain"
	"review_analysis/internal/shared"
	mysqlrepo "review_analysis/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	if err := cfg.ResolveCredentials(); err != nil {
		log.Fatal().Err(err).Msg("google cloud credentials")
	}

	lang, err := language.New(ctx, language.Config{
		CredentialsPath: cfg.CredentialsPath,
		RPS:             cfg.LanguageRPS,
		Timeout:         cfg.ExternalTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize language client")
	}
	defer lang.Close()

	gen := gemini.New(gemini.Config{
		BaseURL:      cfg.GeminiBaseURL,
		Model:        cfg.GeminiModel,
		APIKey:       cfg.GeminiAPIKey,
		RPS:          cfg.GeminiRPS,
		Timeout:      cfg.ExternalTimeout,
		MaxRetryTime: cfg.GeminiMaxRetry,
	})

	store, closeStore := sessionStore(ctx, cfg)
	defer closeStore()

	// deps
	analysis := app.NewAnalysisService(excel.Parse,
		app.NewScorer(lang, cfg.ScoringWorkers),
		app.NewNarrator(gen, narrativeLimits(cfg)),
		store)
	questions := app.NewQuestionService(gen, store)

	// http
	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{A: analysis, Q: questions, MaxUploadBytes: cfg.MaxUploadBytes})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("sessions", cfg.SessionBackend).
		Str("model", cfg.GeminiModel).
		Bool("gemini", gen.Configured()).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func narrativeLimits(cfg shared.Config) app.NarrativeLimits {
	l := app.DefaultNarrativeLimits()
	l.Budget = cfg.NarrativeBudget
	return l
}

// sessionStore picks the review-set backend named by SESSION_BACKEND.
func sessionStore(ctx context.Context, cfg shared.Config) (domain.SessionStore, func()) {
	switch cfg.SessionBackend {
	case "redis":
		rs := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.SessionTTL)
		if err := rs.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
		}
		log.Info().Msg("redis session store ok")
		return rs, func() { _ = rs.Close() }

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		repo := mysqlrepo.New(db, cfg.SessionTTL)
		go sweepExpired(ctx, repo, cfg.SessionTTL)
		return repo, func() { _ = db.Close() }

	default:
		if cfg.SessionBackend != "memory" {
			log.Warn().Str("backend", cfg.SessionBackend).Msg("unknown session backend, using memory")
		}
		ms := memstore.New(cfg.SessionTTL)
		go ms.RunSweeper(ctx, time.Minute)
		return ms, func() {}
	}
}

func sweepExpired(ctx context.Context, repo *mysqlrepo.Repo, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("delete expired sessions failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired sessions swept")
			}
		}
	}
}
