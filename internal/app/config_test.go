package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/flow"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 28, cfg.MaxQuestions)
	assert.Equal(t, 9, cfg.MinQuestions)
	assert.Equal(t, 180*time.Minute, cfg.SessionTTL)
	assert.Equal(t, string(flow.SourceBank), cfg.QuestionSource)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.True(t, cfg.PrefetchEnabled)
}

func TestLoadConfigEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindtrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_questions: 20
min_questions: 12
question_source: adaptive
session_ttl: 30m
port: ":9000"
cors_origins: ["https://file.example"]
oracle:
  model: file-model
`), 0o600))
	t.Setenv(configPathEnv, path)
	t.Setenv("MAX_QUESTIONS", "15")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ORACLE_MODEL", "")
	t.Setenv("OPENAI_MODEL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.MaxQuestions)
	assert.Equal(t, 12, cfg.MinQuestions)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, flow.SourceAdaptive, cfg.PipelineConfig().QuestionSource)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "file-model", cfg.Oracle.Model)
}

func TestLoadConfigCapsMinAtMax(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv("MAX_QUESTIONS", "6")
	t.Setenv("MIN_QUESTIONS", "9")
	t.Setenv("SESSION_TTL_MINUTES", "45")
	t.Setenv("QUESTION_SOURCE", "ADAPTIVE")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MinQuestions)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	assert.Equal(t, string(flow.SourceAdaptive), cfg.QuestionSource)
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_questions: [1, 2"), 0o600))
	t.Setenv(configPathEnv, path)
	_, err = LoadConfig()
	assert.Error(t, err)
}
