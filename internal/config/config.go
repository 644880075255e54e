// Package config loads runtime settings from flags, environment variables and
// an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	BackendGemini = "gemini"
	BackendLLMS   = "llms"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Host string
	Port int
	Env  string

	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	Backend           string
	GenerationTimeout time.Duration

	DBDriver    string
	DBPath      string
	DatabaseURL string

	DefaultPageSize       int
	MaxPageSize           int
	DefaultGeneratedItems int
	MaxGeneratedItems     int
	RecommendPerCategory  int

	LogLevel  string
	LogFormat string

	ShowVersion bool
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var defaults = map[string]interface{}{
	"HOST":                    "0.0.0.0",
	"PORT":                    8080,
	"APP_ENV":                 EnvDevelopment,
	"GEMINI_MODEL":            "gemini-2.5-flash",
	"GEMINI_BASE_URL":         "https://generativelanguage.googleapis.com",
	"GENERATION_BACKEND":      BackendGemini,
	"GENERATION_TIMEOUT":      "90s",
	"DB_DRIVER":               DriverSQLite,
	"DB_PATH":                 "menu.db",
	"DEFAULT_PAGE_SIZE":       10,
	"MAX_PAGE_SIZE":           100,
	"DEFAULT_GENERATED_ITEMS": 5,
	"MAX_GENERATED_ITEMS":     20,
	"RECOMMEND_PER_CATEGORY":  15,
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "text",
}

// Load parses args (without the program name) and the environment.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("menu-api", pflag.ContinueOnError)
	fs.String("host", "", "Host address")
	fs.Int("port", 0, "Port for the HTTP server")
	fs.String("env", "", "Runtime environment (development|production)")
	fs.String("db-driver", "", "Database driver (sqlite|postgres)")
	fs.String("db-path", "", "SQLite database path")
	fs.String("backend", "", "Generation backend (gemini|llms)")
	fs.String("log-level", "", "Log level")
	envFile := fs.String("env-file", ".env", "Optional dotenv file")
	version := fs.Bool("version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"HOST":               "host",
		"PORT":               "port",
		"APP_ENV":            "env",
		"DB_DRIVER":          "db-driver",
		"DB_PATH":            "db-path",
		"GENERATION_BACKEND": "backend",
		"LOG_LEVEL":          "log-level",
	} {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}

	cfg := &Config{
		Host:                  v.GetString("HOST"),
		Port:                  v.GetInt("PORT"),
		Env:                   strings.ToLower(v.GetString("APP_ENV")),
		GeminiAPIKey:          v.GetString("GEMINI_API_KEY"),
		GeminiModel:           v.GetString("GEMINI_MODEL"),
		GeminiBaseURL:         v.GetString("GEMINI_BASE_URL"),
		Backend:               strings.ToLower(v.GetString("GENERATION_BACKEND")),
		GenerationTimeout:     v.GetDuration("GENERATION_TIMEOUT"),
		DBDriver:              strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:                v.GetString("DB_PATH"),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		DefaultPageSize:       v.GetInt("DEFAULT_PAGE_SIZE"),
		MaxPageSize:           v.GetInt("MAX_PAGE_SIZE"),
		DefaultGeneratedItems: v.GetInt("DEFAULT_GENERATED_ITEMS"),
		MaxGeneratedItems:     v.GetInt("MAX_GENERATED_ITEMS"),
		RecommendPerCategory:  v.GetInt("RECOMMEND_PER_CATEGORY"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
		ShowVersion:           *version,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d", c.Port))
	}
	if c.Backend != BackendGemini && c.Backend != BackendLLMS {
		problems = append(problems, fmt.Sprintf("unknown generation backend %q", c.Backend))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			problems = append(problems, "DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.DBDriver))
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		problems = append(problems, "page sizes must satisfy 1 <= DEFAULT_PAGE_SIZE <= MAX_PAGE_SIZE")
	}
	if c.DefaultGeneratedItems < 1 || c.MaxGeneratedItems < c.DefaultGeneratedItems {
		problems = append(problems, "generated item counts must satisfy 1 <= DEFAULT_GENERATED_ITEMS <= MAX_GENERATED_ITEMS")
	}
	if c.RecommendPerCategory < 1 {
		problems = append(problems, "RECOMMEND_PER_CATEGORY must be >= 1")
	}
	if c.GenerationTimeout <= 0 {
		problems = append(problems, "GENERATION_TIMEOUT must be positive")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
