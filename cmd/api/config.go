package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/polidossier/engine/cache"
	"github.com/WessleyAI/polidossier/engine/oracle"
	"github.com/WessleyAI/polidossier/engine/photo"
	"github.com/WessleyAI/polidossier/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port string

	Provider      string
	OpenAIKey     string
	GeminiKey     string
	Model         string
	OracleBaseURL string
	OllamaURL     string
	OracleTimeout time.Duration

	StaticDir  string
	CORSOrigin string

	RateLimitMax    int
	RateLimitWindow time.Duration
	TrustProxy      bool

	CacheTTL     time.Duration
	PhotoTimeout time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration

	NATSURL  string
	LogLevel string
}

func loadConfig() (Config, error) {
	cfg := Config{
		Port:             envOr("PORT", "3000"),
		Provider:         strings.ToLower(envOr("ORACLE_PROVIDER", oracle.ProviderOpenAI)),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		Model:            os.Getenv("ORACLE_MODEL"),
		OracleBaseURL:    os.Getenv("ORACLE_BASE_URL"),
		OllamaURL:        envOr("OLLAMA_URL", oracle.DefaultOllamaURL),
		OracleTimeout:    getDuration("ORACLE_TIMEOUT", 0),
		StaticDir:        envOr("STATIC_DIR", "frontend"),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
		RateLimitMax:     getInt("RATE_LIMIT_MAX", resilience.DefaultKeyedOpts.Max),
		RateLimitWindow:  getDuration("RATE_LIMIT_WINDOW", resilience.DefaultKeyedOpts.Window),
		TrustProxy:       getBool("TRUST_PROXY", false),
		CacheTTL:         getDuration("CACHE_TTL", cache.DefaultTTL),
		PhotoTimeout:     getDuration("PHOTO_TIMEOUT", photo.DefaultTimeout),
		BreakerThreshold: getInt("BREAKER_THRESHOLD", resilience.DefaultBreakerOpts.FailThreshold),
		BreakerCooldown:  getDuration("BREAKER_COOLDOWN", resilience.DefaultBreakerOpts.Timeout),
		NATSURL:          os.Getenv("NATS_URL"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	switch c.Provider {
	case oracle.ProviderOpenAI:
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
	case oracle.ProviderGemini:
		if c.GeminiKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when ORACLE_PROVIDER=gemini"))
		}
	case oracle.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("ORACLE_PROVIDER %q is not one of openai, gemini, ollama", c.Provider))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT %q is not a number", c.Port))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.BreakerThreshold <= 0 {
		errs = append(errs, errors.New("BREAKER_THRESHOLD must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) oracleConfig() oracle.Config {
	oc := oracle.Config{
		Provider: c.Provider,
		Model:    c.Model,
		BaseURL:  c.OracleBaseURL,
		Timeout:  c.OracleTimeout,
	}
	switch c.Provider {
	case oracle.ProviderGemini:
		oc.APIKey = c.GeminiKey
	case oracle.ProviderOllama:
		oc.BaseURL = c.OllamaURL
	default:
		oc.APIKey = c.OpenAIKey
	}
	return oc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// newLogger builds the JSON logger with the level taken from LOG_LEVEL.
func newLogger(level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h).With("service", "polidossier-api")
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
