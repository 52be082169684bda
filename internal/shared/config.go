package shared

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	CredentialsPath string
	ProjectID       string
	Location        string
	LanguageRPS     int

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	GeminiRPS     int
	// GeminiMaxRetry is the retry window for questions; negative disables retries.
	GeminiMaxRetry  time.Duration
	NarrativeBudget time.Duration

	ScoringWorkers  int
	ExternalTimeout time.Duration
	RequestTimeout  time.Duration
	MaxUploadBytes  int64

	SessionBackend string // memory|redis|mysql
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPass      string
	RedisDB        int
	MySQLDSN       string
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		CredentialsPath: env("GOOGLE_APPLICATION_CREDENTIALS", "credentials.json"),
		ProjectID:       env("GOOGLE_CLOUD_PROJECT", ""),
		Location:        env("GOOGLE_CLOUD_LOCATION", "europe-west1"),
		LanguageRPS:     atoi("LANGUAGE_RPS", 10),

		GeminiAPIKey:  env("GEMINI_API_KEY", ""),
		GeminiBaseURL: env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:   env("GEMINI_MODEL", "gemini-1.5-pro-002"),
		GeminiRPS:     atoi("GEMINI_RPS", 2),

		GeminiMaxRetry:  time.Duration(atoi("GEMINI_MAX_RETRY_SECONDS", 45)) * time.Second,
		NarrativeBudget: time.Duration(atoi("NARRATIVE_BUDGET_SECONDS", 90)) * time.Second,

		ScoringWorkers:  atoi("SCORING_WORKERS", 4),
		ExternalTimeout: time.Duration(atoi("EXTERNAL_TIMEOUT_SECONDS", 30)) * time.Second,
		RequestTimeout:  time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		MaxUploadBytes:  int64(atoi("MAX_UPLOAD_BYTES", 20<<20)),

		SessionBackend: env("SESSION_BACKEND", "memory"),
		SessionTTL:     time.Duration(atoi("SESSION_TTL_SECONDS", 3600)) * time.Second,
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4&loc=UTC"),
	}
	// narration must finish while the upload request can still answer
	if c.NarrativeBudget <= 0 || c.NarrativeBudget >= c.RequestTimeout {
		log.Warn().Dur("budget", c.NarrativeBudget).Dur("request_timeout", c.RequestTimeout).
			Msg("NARRATIVE_BUDGET_SECONDS must be below the request timeout, using half of it")
		c.NarrativeBudget = c.RequestTimeout / 2
	}
	if c.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty; narrative and questions are disabled")
	}
	return c
}

// ResolveCredentials makes CredentialsPath absolute and checks the file exists.
// A missing credentials file is fatal for the service.
func (c *Config) ResolveCredentials() error {
	p := c.CredentialsPath
	if p == "" {
		return errors.New("GOOGLE_APPLICATION_CREDENTIALS is not set")
	}
	if !filepath.IsAbs(p) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve credentials path: %w", err)
		}
		p = filepath.Join(wd, p)
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("google cloud credentials file not found at %s: %w", p, err)
	}
	c.CredentialsPath = p
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
