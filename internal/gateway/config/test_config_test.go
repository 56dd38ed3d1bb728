package config

import (
	"testing"
	"time"

	"promptbuilder/internal/tester"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "MAX_SESSIONS", "CORS_ALLOWED_ORIGINS",
		"TAXONOMY_BACKEND", "TAXONOMY_API_URL", "TAXONOMY_API_KEY", "SETTINGS_PATH",
		"TAXONOMY_PG_DSN", "DATABASE_URL", "TAXONOMY_SQLITE_PATH", "TAXONOMY_CACHE_TTL",
		"ENABLE_AI", "AI_PROVIDER", "API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"AI_BASE_URL", "OPENAI_BASE_URL", "AI_PRIMARY_MODEL", "AI_FALLBACK_MODEL", "AI_TIMEOUT",
		"AI_ANALYZE_FALLBACK_MODEL",
		"SNAPSHOT_S3_ENDPOINT", "SNAPSHOT_S3_BUCKET", "SNAPSHOT_S3_ACCESS_KEY", "SNAPSHOT_S3_SECRET_KEY",
		"MINIO_ROOT_USER", "MINIO_ROOT_PASSWORD", "NATS_URL", "NATS_SUBJECT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Port, ":8081")
	tester.Eq(t, cfg.Env, "local")
	tester.Eq(t, cfg.LogFormat, "console")
	tester.Eq(t, cfg.Taxonomy.Backend, BackendSheet)
	tester.True(t, cfg.AI.Enabled)
	tester.Eq(t, cfg.AI.PrimaryModel, "gemini-2.5-flash")
	tester.Eq(t, cfg.AI.FallbackModel, "gemini-1.5-flash")
	tester.Eq(t, cfg.AI.AnalyzeFallbackModel, "gemini-1.5-flash-latest")
	tester.Eq(t, cfg.AI.Timeout, 60*time.Second)
	tester.False(t, cfg.Snapshot.CanUseS3())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ENABLE_AI", "FALSE")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("AI_TIMEOUT", "15")
	t.Setenv("AI_ANALYZE_FALLBACK_MODEL", "gemini-2.0-flash")
	t.Setenv("TAXONOMY_BACKEND", "sqlite")
	t.Setenv("SNAPSHOT_S3_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ROOT_USER", "user")
	t.Setenv("MINIO_ROOT_PASSWORD", "pass")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.local, ,http://b.local")

	cfg, err := Load(nil)
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Port, ":9000")
	tester.False(t, cfg.AI.Enabled)
	tester.Eq(t, cfg.AI.APIKey, "g-key")
	tester.Eq(t, cfg.AI.Timeout, 15*time.Second)
	tester.Eq(t, cfg.AI.AnalyzeFallbackModel, "gemini-2.0-flash")
	tester.Eq(t, cfg.Taxonomy.Backend, BackendSQLite)
	tester.True(t, cfg.Snapshot.CanUseS3())
	tester.Eq(t, cfg.AllowedOrigins, []string{"http://a.local", "http://b.local"})
}

func TestFlagsWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("TAXONOMY_BACKEND", "sqlite")
	cfg, err := Load([]string{"-port", ":7000", "-taxonomy-backend", "memory"})
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Port, ":7000")
	tester.Eq(t, cfg.Taxonomy.Backend, BackendMemory)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAXONOMY_BACKEND", "mongo")
	_, err := Load(nil)
	tester.True(t, err != nil)

	t.Setenv("TAXONOMY_BACKEND", "postgres")
	_, err = Load(nil)
	tester.True(t, err != nil)
}
