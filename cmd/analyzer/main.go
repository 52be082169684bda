// Command analyzer runs the review pipeline over local workbooks and prints
// one JSON result per file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_analysis/internal/adapters/excel"
	"review_analysis/internal/adapters/gemini"
	"review_analysis/internal/adapters/language"
	"review_analysis/internal/adapters/memstore"
	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/app"
	"review_analysis/internal/shared"
)

type fileResult struct {
	File   string              `json:"file"`
	Error  string              `json:"error,omitempty"`
	Result *app.AnalysisResult `json:"result,omitempty"`
}

func main() {
	files := flag.Int("files", 2, "workbooks processed concurrently")
	workers := flag.Int("workers", 0, "sentiment calls in flight per workbook (0 = SCORING_WORKERS)")
	out := flag.String("out", "", "write JSON lines here instead of stdout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatal().Msg("usage: analyzer [flags] file.xlsx...")
	}
	if *workers <= 0 {
		*workers = cfg.ScoringWorkers
	}
	if *files <= 0 {
		*files = 1
	}

	if err := cfg.ResolveCredentials(); err != nil {
		log.Fatal().Err(err).Msg("google cloud credentials")
	}
	lang, err := language.New(ctx, language.Config{CredentialsPath: cfg.CredentialsPath, RPS: cfg.LanguageRPS, Timeout: cfg.ExternalTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize language client")
	}
	defer lang.Close()
	gen := gemini.New(gemini.Config{BaseURL: cfg.GeminiBaseURL, Model: cfg.GeminiModel, APIKey: cfg.GeminiAPIKey, RPS: cfg.GeminiRPS, Timeout: cfg.ExternalTimeout, MaxRetryTime: cfg.GeminiMaxRetry})

	svc := app.NewAnalysisService(excel.Parse, app.NewScorer(lang, *workers),
		app.NewNarrator(gen, app.NarrativeLimits{Budget: cfg.NarrativeBudget}), memstore.New(0))

	w := os.Stdout
	if *out != "" {
		fh, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Str("path", *out).Msg("create output failed")
		}
		defer fh.Close()
		w = fh
	}
	enc := json.NewEncoder(w)
	var encMu sync.Mutex

	log.Info().Int("files", len(paths)).Int("concurrency", *files).Int("workers", *workers).Msg("analyzer starting")

	sem := semaphore.NewWeighted(int64(*files))
	var wg sync.WaitGroup
	for _, p := range paths {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("stopping before all files were processed")
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			fr := analyzeFile(ctx, svc, path)
			encMu.Lock()
			defer encMu.Unlock()
			if err := enc.Encode(fr); err != nil {
				log.Error().Err(err).Str("file", path).Msg("write result failed")
			}
		}(p)
	}

	wg.Wait()
	log.Info().Msg("analysis completed")
}

func analyzeFile(ctx context.Context, svc *app.AnalysisService, path string) fileResult {
	fr := fileResult{File: path}
	fh, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("open failed")
		fr.Error = err.Error()
		return fr
	}
	defer fh.Close()

	// each file gets its own session in the throwaway store
	res, err := svc.Analyze(ctx, filepath.Clean(path), fh)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("analysis failed")
		fr.Error = err.Error()
		return fr
	}
	log.Info().Str("file", path).Int("reviews", res.ReviewCount).Int("scored", res.ScoredCount).Msg("analysis ok")
	fr.Result = &res
	return fr
}
