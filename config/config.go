package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"semasync/errs"
)

// Config carries everything the engine and its adapters need. Values come
// from the environment (optionally seeded from a .env file); defaults keep
// local-only commands like snapshot listing usable without any setup.
type Config struct {
	// Model side (semantic-model service REST API)
	TenantID       string
	ClientID       string
	ClientSecret   string
	WorkspaceID    string
	DatasetName    string
	APIBaseURL     string `validate:"omitempty,url"`
	TokenURL       string `validate:"omitempty,url"`
	TokenScope     string
	TokenCachePath string

	// Warehouse side
	DatabaseURL     string
	WarehouseSchema string `validate:"required"`

	// Lakehouse object storage (fallback extraction)
	LakeEndpoint  string
	LakeAccessKey string
	LakeSecretKey string
	LakeBucket    string
	LakePrefix    string
	LakeUseSSL    bool

	// Local state
	SnapshotDBPath string `validate:"required"`
	RegistryDir    string

	// Engine behavior
	RequestTimeout time.Duration `validate:"gt=0"`
	IgnoreHidden   bool
	CaseSensitive  bool
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogMode        string `validate:"oneof=dev prod"`
}

// Load reads .env (when present) and builds a Config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("ℹ️  No .env file found, continuing...")
	}

	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".semasync")

	cfg := &Config{
		TenantID:        os.Getenv("SEMASYNC_TENANT_ID"),
		ClientID:        os.Getenv("SEMASYNC_CLIENT_ID"),
		ClientSecret:    os.Getenv("SEMASYNC_CLIENT_SECRET"),
		WorkspaceID:     os.Getenv("SEMASYNC_WORKSPACE_ID"),
		DatasetName:     os.Getenv("SEMASYNC_DATASET"),
		APIBaseURL:      getenv("SEMASYNC_API_BASE_URL", "https://api.powerbi.com/v1.0/myorg"),
		TokenURL:        os.Getenv("SEMASYNC_TOKEN_URL"),
		TokenScope:      getenv("SEMASYNC_TOKEN_SCOPE", "https://analysis.windows.net/powerbi/api/.default"),
		TokenCachePath:  getenv("SEMASYNC_TOKEN_CACHE", filepath.Join(stateDir, ".token_cache")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		WarehouseSchema: getenv("SEMASYNC_WAREHOUSE_SCHEMA", "public"),
		LakeEndpoint:    os.Getenv("SEMASYNC_LAKE_ENDPOINT"),
		LakeAccessKey:   os.Getenv("SEMASYNC_LAKE_ACCESS_KEY"),
		LakeSecretKey:   os.Getenv("SEMASYNC_LAKE_SECRET_KEY"),
		LakeBucket:      os.Getenv("SEMASYNC_LAKE_BUCKET"),
		LakePrefix:      getenv("SEMASYNC_LAKE_PREFIX", "Tables/"),
		LakeUseSSL:      getenvBool("SEMASYNC_LAKE_USE_SSL", true),
		SnapshotDBPath:  getenv("SEMASYNC_SNAPSHOT_DB", filepath.Join(stateDir, "snapshots.db")),
		RegistryDir:     getenv("SEMASYNC_REGISTRY_DIR", "registry"),
		RequestTimeout:  getenvDuration("SEMASYNC_REQUEST_TIMEOUT", 30*time.Second),
		IgnoreHidden:    getenvBool("SEMASYNC_IGNORE_HIDDEN", false),
		CaseSensitive:   getenvBool("SEMASYNC_CASE_SENSITIVE", false),
		LogLevel:        getenv("SEMASYNC_LOG_LEVEL", "info"),
		LogMode:         getenv("SEMASYNC_LOG_MODE", "dev"),
	}

	if cfg.TokenURL == "" && cfg.TenantID != "" {
		cfg.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural sanity of whatever is set. Per-side completeness
// is checked separately so local-only commands stay usable.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return &errs.ConfigurationError{
				Message: "invalid configuration value",
				Details: map[string]string{
					"field": first.Field(),
					"rule":  first.Tag(),
				},
			}
		}
		return &errs.ConfigurationError{Message: err.Error()}
	}
	return nil
}

// RequireModelSide verifies the semantic-model service credentials are
// present.
func (c *Config) RequireModelSide() error {
	missing := map[string]string{}
	if c.TenantID == "" {
		missing["SEMASYNC_TENANT_ID"] = "required"
	}
	if c.ClientID == "" {
		missing["SEMASYNC_CLIENT_ID"] = "required"
	}
	if c.ClientSecret == "" {
		missing["SEMASYNC_CLIENT_SECRET"] = "required"
	}
	if c.WorkspaceID == "" {
		missing["SEMASYNC_WORKSPACE_ID"] = "required"
	}
	if c.DatasetName == "" {
		missing["SEMASYNC_DATASET"] = "required"
	}
	if len(missing) > 0 {
		return &errs.ConfigurationError{Message: "model side is not configured", Details: missing}
	}
	return nil
}

// RequireWarehouse verifies the warehouse connection string is present.
func (c *Config) RequireWarehouse() error {
	if c.DatabaseURL == "" {
		return &errs.ConfigurationError{
			Message: "warehouse is not configured",
			Details: map[string]string{"DATABASE_URL": "required"},
		}
	}
	return nil
}

// LakeConfigured reports whether the lakehouse fallback can be attempted.
func (c *Config) LakeConfigured() bool {
	return c.LakeEndpoint != "" && c.LakeAccessKey != "" && c.LakeSecretKey != "" && c.LakeBucket != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
