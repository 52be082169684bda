package shared_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_analysis/internal/shared"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("SCORING_WORKERS", "7")
	t.Setenv("SESSION_TTL_SECONDS", "60")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("REDIS_DB", "not-a-number")

	c := shared.Load()

	assert.Equal(t, 7, c.ScoringWorkers)
	assert.Equal(t, time.Minute, c.SessionTTL)
	assert.Equal(t, "gemini-1.5-pro-002", c.GeminiModel)
	assert.Equal(t, 0, c.RedisDB)
	assert.Equal(t, "europe-west1", c.Location)
	assert.Equal(t, 45*time.Second, c.GeminiMaxRetry)
	assert.Equal(t, 90*time.Second, c.NarrativeBudget)
}

func TestLoad_NarrativeBudgetStaysInsideRequestTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "60")
	t.Setenv("NARRATIVE_BUDGET_SECONDS", "120")
	t.Setenv("GEMINI_MAX_RETRY_SECONDS", "-1")

	c := shared.Load()

	assert.Equal(t, 30*time.Second, c.NarrativeBudget)
	assert.Equal(t, -time.Second, c.GeminiMaxRetry)
}

func TestResolveCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	c := shared.Config{CredentialsPath: path}
	require.NoError(t, c.ResolveCredentials())
	assert.Equal(t, path, c.CredentialsPath)

	missing := shared.Config{CredentialsPath: "nope/sa.json"}
	err := missing.ResolveCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials file not found")
}
