package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"promptbuilder/internal/refine"
)

const (
	BackendSheet    = "sheet"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string
	MaxSessions int

	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string

	Taxonomy TaxonomyConfig
	AI       AIConfig
	Snapshot SnapshotConfig
	NATS     NATSConfig
}

type TaxonomyConfig struct {
	Backend      string
	APIURL       string
	APIKey       string
	SettingsPath string
	PostgresDSN  string
	SQLitePath   string
	CacheTTL     time.Duration
}

type AIConfig struct {
	Enabled       bool
	Provider      string
	APIKey        string
	BaseURL       string
	PrimaryModel  string
	FallbackModel string
	Timeout       time.Duration

	// AnalyzeFallbackModel serves image analysis when the primary is down.
	AnalyzeFallbackModel string
}

type SnapshotConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Keep bounds the archive; zero keeps every snapshot.
	Keep int
}

// CanUseS3 reports whether snapshots go to object storage.
func (c SnapshotConfig) CanUseS3() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type NATSConfig struct {
	URL     string
	Subject string
}

// Load reads .env, then flags from args, then the environment. Environment
// values win over flag defaults, explicit flags win over both.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	backend := fs.String("taxonomy-backend", "", "taxonomy store: sheet, postgres, sqlite or memory")
	settingsPath := fs.String("settings", "", "path of the persisted endpoint override file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" && !set["port"] {
		*port = envPort
	}
	if !strings.HasPrefix(*port, ":") && !strings.Contains(*port, ":") {
		*port = ":" + *port
	}

	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")

	cfg := &Config{
		Port:           *port,
		Env:            env,
		LogLevel:       firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"),
		LogFormat:      firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FORMAT")), defaultLogFormat(env)),
		MaxSessions:    envInt("MAX_SESSIONS", 256),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Taxonomy:       loadTaxonomyConfig(*backend, *settingsPath, set),
		AI:             loadAIConfig(),
		Snapshot:       loadSnapshotConfig(),
		NATS: NATSConfig{
			URL:     strings.TrimSpace(os.Getenv("NATS_URL")),
			Subject: strings.TrimSpace(os.Getenv("NATS_SUBJECT")),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultLogFormat(env string) string {
	if strings.EqualFold(env, "local") {
		return "console"
	}
	return "json"
}

func loadTaxonomyConfig(backendFlag, settingsFlag string, set map[string]bool) TaxonomyConfig {
	backend := strings.TrimSpace(os.Getenv("TAXONOMY_BACKEND"))
	if set["taxonomy-backend"] || backend == "" {
		backend = backendFlag
	}
	settingsPath := strings.TrimSpace(os.Getenv("SETTINGS_PATH"))
	if set["settings"] || settingsPath == "" {
		settingsPath = settingsFlag
	}
	return TaxonomyConfig{
		Backend:      strings.ToLower(firstNonEmpty(backend, BackendSheet)),
		APIURL:       strings.TrimSpace(os.Getenv("TAXONOMY_API_URL")),
		APIKey:       strings.TrimSpace(os.Getenv("TAXONOMY_API_KEY")),
		SettingsPath: firstNonEmpty(settingsPath, "tmp/settings.yaml"),
		PostgresDSN:  firstNonEmpty(strings.TrimSpace(os.Getenv("TAXONOMY_PG_DSN")), strings.TrimSpace(os.Getenv("DATABASE_URL"))),
		SQLitePath:   firstNonEmpty(strings.TrimSpace(os.Getenv("TAXONOMY_SQLITE_PATH")), "tmp/taxonomy.db"),
		CacheTTL:     envDuration("TAXONOMY_CACHE_TTL", 2*time.Minute),
	}
}

func loadAIConfig() AIConfig {
	return AIConfig{
		// Anything but an explicit "false" keeps AI on.
		Enabled:       !strings.EqualFold(strings.TrimSpace(os.Getenv("ENABLE_AI")), "false"),
		Provider:      strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("AI_PROVIDER")), "gemini")),
		APIKey:        firstNonEmpty(strings.TrimSpace(os.Getenv("API_KEY")), strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))),
		BaseURL:       firstNonEmpty(strings.TrimSpace(os.Getenv("AI_BASE_URL")), strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))),
		PrimaryModel:  firstNonEmpty(strings.TrimSpace(os.Getenv("AI_PRIMARY_MODEL")), refine.DefaultPrimaryModel),
		FallbackModel: firstNonEmpty(strings.TrimSpace(os.Getenv("AI_FALLBACK_MODEL")), refine.DefaultFallbackModel),
		Timeout:       envDuration("AI_TIMEOUT", 60*time.Second),

		AnalyzeFallbackModel: firstNonEmpty(strings.TrimSpace(os.Getenv("AI_ANALYZE_FALLBACK_MODEL")), refine.DefaultAnalyzeFallbackModel),
	}
}

func loadSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ENDPOINT")),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_BUCKET")), "promptbuilder-snapshots"),
		UseSSL:    envBool("SNAPSHOT_S3_USE_SSL", false),
		Keep:      envInt("SNAPSHOT_KEEP", 50),
	}
}

func (c *Config) validate() error {
	switch c.Taxonomy.Backend {
	case BackendSheet, BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Taxonomy.PostgresDSN == "" {
			return fmt.Errorf("config: TAXONOMY_PG_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown taxonomy backend %q", c.Taxonomy.Backend)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("config: AI_TIMEOUT must be positive")
	}
	return nil
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
