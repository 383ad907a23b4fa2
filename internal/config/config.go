package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/llm"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	LogMode   string

	DBDriver string
	DBDSN    string

	BlobBasePath string
	RedisAddr    string // empty: in-process generation lease

	CORSOrigins []string

	AuthHMACSecret string
	TokenTTL       time.Duration
	AdminEmail     string // promoted to admin on login

	PassThreshold          int
	GenerationCooldown     time.Duration
	SessionGrace           time.Duration
	DefaultSessionDuration time.Duration

	LLM    llm.Config
	Ingest IngestConfig
}

type IngestConfig struct {
	MaxRows  int
	MaxBytes int
}

// FromEnv reads configuration from the environment. A .env file in the
// working directory (or the file named by ENV_FILE) is loaded first when present.
func FromEnv() Config {
	loadDotEnv()
	return fromViper(newViper())
}

func loadDotEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PUBLIC_URL", "")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("BLOB_BASE_PATH", "./data")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("AUTH_HMAC_SECRET", "dev-secret-change-me")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("PASS_THRESHOLD", 70)
	v.SetDefault("GENERATION_COOLDOWN", 24*time.Hour)
	v.SetDefault("SESSION_GRACE", 30*time.Second)
	v.SetDefault("DEFAULT_SESSION_DURATION", 600*time.Second)

	def := llm.DefaultConfig()
	v.SetDefault("LLM_PROVIDER", def.Provider)
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_MODEL", def.Model)
	v.SetDefault("LLM_BASE_URL", def.BaseURL)
	v.SetDefault("LLM_REFERER", "")
	v.SetDefault("LLM_TITLE", "Skillway")
	v.SetDefault("LLM_TEMPERATURE", def.Temperature)
	v.SetDefault("LLM_MAX_TOKENS", def.MaxTokens)
	v.SetDefault("LLM_TIMEOUT", def.Timeout)
	v.SetDefault("LLM_MAX_ATTEMPTS", def.Retry.MaxAttempts)
	v.SetDefault("LLM_BACKOFF_BASE", def.Retry.BackoffBase)

	v.SetDefault("INGEST_MAX_ROWS", 500)
	v.SetDefault("INGEST_MAX_BYTES", 5*1024*1024)

	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) Config {
	llmCfg := llm.DefaultConfig()
	llmCfg.Provider = v.GetString("LLM_PROVIDER")
	llmCfg.APIKey = v.GetString("LLM_API_KEY")
	llmCfg.Model = v.GetString("LLM_MODEL")
	llmCfg.BaseURL = v.GetString("LLM_BASE_URL")
	llmCfg.Referer = v.GetString("LLM_REFERER")
	llmCfg.Title = v.GetString("LLM_TITLE")
	llmCfg.Temperature = v.GetFloat64("LLM_TEMPERATURE")
	llmCfg.MaxTokens = v.GetInt("LLM_MAX_TOKENS")
	llmCfg.Timeout = v.GetDuration("LLM_TIMEOUT")
	llmCfg.Retry.MaxAttempts = v.GetInt("LLM_MAX_ATTEMPTS")
	llmCfg.Retry.BackoffBase = v.GetDuration("LLM_BACKOFF_BASE")

	return Config{
		Mode:                   Mode(v.GetString("MODE")),
		HTTPAddr:               v.GetString("HTTP_ADDR"),
		PublicURL:              v.GetString("PUBLIC_URL"),
		LogMode:                v.GetString("LOG_MODE"),
		DBDriver:               v.GetString("DB_DRIVER"),
		DBDSN:                  v.GetString("DB_DSN"),
		BlobBasePath:           v.GetString("BLOB_BASE_PATH"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		CORSOrigins:            splitCSV(v.GetString("CORS_ORIGINS")),
		AuthHMACSecret:         v.GetString("AUTH_HMAC_SECRET"),
		TokenTTL:               v.GetDuration("TOKEN_TTL"),
		AdminEmail:             strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		PassThreshold:          v.GetInt("PASS_THRESHOLD"),
		GenerationCooldown:     v.GetDuration("GENERATION_COOLDOWN"),
		SessionGrace:           v.GetDuration("SESSION_GRACE"),
		DefaultSessionDuration: v.GetDuration("DEFAULT_SESSION_DURATION"),
		LLM:                    llmCfg,
		Ingest: IngestConfig{
			MaxRows:  v.GetInt("INGEST_MAX_ROWS"),
			MaxBytes: v.GetInt("INGEST_MAX_BYTES"),
		},
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Mode == ModeOnline && c.AuthHMACSecret == "dev-secret-change-me" {
		errs = append(errs, errors.New("AUTH_HMAC_SECRET must be set in online mode"))
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("LLM_API_KEY is required for provider %q", c.LLM.Provider))
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		errs = append(errs, fmt.Errorf("PASS_THRESHOLD must be within 0..100, got %d", c.PassThreshold))
	}
	if len(errs) == 0 {
		return nil
	}
	return apierr.New(500, apierr.CodeConfiguration, errors.Join(errs...))
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
