package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/mindtrace-backend/internal/inference/config"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/flow"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/envutil"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

const configPathEnv = "MINDTRACE_CONFIG_PATH"

type Config struct {
	AppPasscode    string        `yaml:"app_passcode"`
	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	MaxQuestions   int           `yaml:"max_questions"`
	MinQuestions   int           `yaml:"min_questions"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	QuestionSource string        `yaml:"question_source"`

	LogMode         string        `yaml:"log_mode"`
	LogLevel        string        `yaml:"log_level"`
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	CORSOrigins     []string      `yaml:"cors_origins"`
	PrefetchEnabled bool          `yaml:"prefetch_enabled"`
	PrefetchTimeout time.Duration `yaml:"prefetch_timeout"`

	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	ReportTTL   time.Duration `yaml:"report_ttl"`

	Tracing observability.TracingConfig `yaml:"tracing"`
	Oracle  config.OracleConfig         `yaml:"oracle"`
}

func DefaultConfig() Config {
	return Config{
		MaxQuestions:    28,
		MinQuestions:    9,
		SessionTTL:      180 * time.Minute,
		QuestionSource:  string(flow.SourceBank),
		LogMode:         "development",
		LogLevel:        string(logger.TierBasic),
		Port:            "8080",
		ShutdownTimeout: 20 * time.Second,
		PrefetchEnabled: true,
		PrefetchTimeout: 2 * time.Minute,
		RedisPrefix:     "mindtrace:report:",
		ReportTTL:       24 * time.Hour,
		Tracing: observability.TracingConfig{
			ServiceName: "mindtrace-backend",
			Environment: "development",
			SampleRatio: 0.1,
		},
		Oracle: config.DefaultOracle(),
	}
}

// LoadConfig reads the optional YAML file named by MINDTRACE_CONFIG_PATH and
// then overlays the environment, so env always wins over the file.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", configPathEnv, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Oracle.ApplyEnv(); err != nil {
		return Config{}, fmt.Errorf("oracle config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.AppPasscode = envutil.String("APP_PASSCODE", c.AppPasscode)
	c.JWTSecretKey = envutil.String("JWT_SECRET_KEY", c.JWTSecretKey)
	c.MaxQuestions = envutil.PositiveInt("MAX_QUESTIONS", c.MaxQuestions)
	c.MinQuestions = envutil.PositiveInt("MIN_QUESTIONS", c.MinQuestions)
	if m := envutil.PositiveInt("SESSION_TTL_MINUTES", 0); m > 0 {
		c.SessionTTL = time.Duration(m) * time.Minute
	}
	c.QuestionSource = envutil.String("QUESTION_SOURCE", c.QuestionSource)

	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.LogLevel = envutil.String("LOG_LEVEL", c.LogLevel)
	c.Port = envutil.String("PORT", c.Port)
	c.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.CORSOrigins = envutil.List("CORS_ORIGINS", c.CORSOrigins)
	c.PrefetchEnabled = envutil.Bool("PREFETCH_ENABLED", c.PrefetchEnabled)
	c.PrefetchTimeout = envutil.Duration("PREFETCH_TIMEOUT", c.PrefetchTimeout)

	c.RedisAddr = envutil.String("REDIS_ADDR", c.RedisAddr)
	c.RedisPrefix = envutil.String("REDIS_REPORT_PREFIX", c.RedisPrefix)
	c.ReportTTL = envutil.Duration("REPORT_TTL", c.ReportTTL)

	c.Tracing.Enabled = envutil.Bool("OTEL_ENABLED", c.Tracing.Enabled)
	c.Tracing.ServiceName = envutil.String("OTEL_SERVICE_NAME", c.Tracing.ServiceName)
	c.Tracing.Environment = envutil.String("APP_ENV", c.Tracing.Environment)
	c.Tracing.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", c.Tracing.SampleRatio, 0, 1)
	c.Tracing.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", c.Tracing.Headers)
	c.Tracing.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Tracing.Insecure)
}

func (c *Config) normalize() {
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = 28
	}
	if c.MinQuestions <= 0 {
		c.MinQuestions = 9
	}
	if c.MinQuestions > c.MaxQuestions {
		c.MinQuestions = c.MaxQuestions
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 180 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 20 * time.Second
	}
	c.QuestionSource = string(flow.ParseQuestionSource(strings.ToLower(strings.TrimSpace(c.QuestionSource))))
	c.Port = strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if c.Port == "" {
		c.Port = "8080"
	}
}

func (c Config) Addr() string { return ":" + c.Port }

func (c Config) PipelineConfig() flow.Config {
	return flow.Config{
		MinQuestions:   c.MinQuestions,
		MaxQuestions:   c.MaxQuestions,
		QuestionSource: flow.ParseQuestionSource(c.QuestionSource),
	}
}
