package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnvFile(t *testing.T) string {
	return "--env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{noEnvFile(t)})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Env != EnvDevelopment || cfg.DBDriver != DriverSQLite || cfg.DBPath != "menu.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DefaultPageSize != 10 || cfg.MaxPageSize != 100 || cfg.MaxGeneratedItems != 20 || cfg.DefaultGeneratedItems != 5 {
		t.Fatalf("unexpected limits %+v", cfg)
	}
	if cfg.GenerationTimeout != 90*time.Second || cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected generation settings %+v", cfg)
	}
	if cfg.IsProduction() {
		t.Fatalf("default env should not be production")
	}
}

func TestLoadEnvAndFlagPrecedence(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("GENERATION_TIMEOUT", "30s")

	cfg, err := Load([]string{noEnvFile(t), "--port=9100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("flag should win over env, got port %d", cfg.Port)
	}
	if !cfg.IsProduction() || cfg.GenerationTimeout != 30*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:9100" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("GEMINI_API_KEY=from-file\nMAX_PAGE_SIZE=50\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets process env; clear what it wrote once the test ends
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Setenv("MAX_PAGE_SIZE", "")
	os.Unsetenv("MAX_PAGE_SIZE")

	cfg, err := Load([]string{"--env-file=" + path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiAPIKey != "from-file" || cfg.MaxPageSize != 50 {
		t.Fatalf("dotenv values not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("GENERATION_BACKEND", "openai")
	t.Setenv("DEFAULT_PAGE_SIZE", "200")

	_, err := Load([]string{noEnvFile(t)})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL is required", "unknown generation backend", "page sizes"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
