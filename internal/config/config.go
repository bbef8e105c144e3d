package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	StoreBackend   string   `mapstructure:"STORE_BACKEND"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	SupabaseURL    string   `mapstructure:"SUPABASE_URL"`
	SupabaseKey    string   `mapstructure:"SUPABASE_KEY"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	RequestTimeout           time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ResolverMaxConcurrency   int           `mapstructure:"RESOLVER_MAX_CONCURRENCY"`
	ResolverCandidateTimeout time.Duration `mapstructure:"RESOLVER_CANDIDATE_TIMEOUT"`
	ResolverRequestTimeout   time.Duration `mapstructure:"RESOLVER_REQUEST_TIMEOUT"`
	AlternativesLimit        int           `mapstructure:"ALTERNATIVES_LIMIT"`
	ConflictBuffer           int           `mapstructure:"CONFLICT_BUFFER"`

	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SUPABASE_URL", "SUPABASE_KEY", "REDIS_URL", "JWT_SECRET", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"RESOLVER_MAX_CONCURRENCY", "RESOLVER_CANDIDATE_TIMEOUT", "RESOLVER_REQUEST_TIMEOUT",
	"ALTERNATIVES_LIMIT", "CONFLICT_BUFFER", "GEMINI_API_KEY", "GEMINI_MODEL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RESOLVER_MAX_CONCURRENCY", 8)
	v.SetDefault("RESOLVER_CANDIDATE_TIMEOUT", "3s")
	v.SetDefault("RESOLVER_REQUEST_TIMEOUT", "15s")
	v.SetDefault("ALTERNATIVES_LIMIT", 10)
	v.SetDefault("CONFLICT_BUFFER", 256)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesSupabase reports whether repositories talk to the hosted PostgREST API
// instead of a direct postgres connection.
func (c *Config) UsesSupabase() bool {
	return c.StoreBackend == BackendSupabase
}

// Validate checks that the selected storage backend has its connection
// settings and that a signing secret exists outside development.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required when STORE_BACKEND is %q", BackendSupabase)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendSupabase, c.StoreBackend)
	}

	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is %q", c.Env)
	}
	if c.ResolverMaxConcurrency <= 0 {
		return fmt.Errorf("RESOLVER_MAX_CONCURRENCY must be positive, got %d", c.ResolverMaxConcurrency)
	}
	if c.AlternativesLimit <= 0 || c.AlternativesLimit > 10 {
		return fmt.Errorf("ALTERNATIVES_LIMIT must be between 1 and 10, got %d", c.AlternativesLimit)
	}
	return nil
}
