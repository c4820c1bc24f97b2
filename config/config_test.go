package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/errs"
)

func validConfig() *Config {
	return &Config{
		APIBaseURL:      "https://api.powerbi.com/v1.0/myorg",
		WarehouseSchema: "public",
		SnapshotDBPath:  "/tmp/snapshots.db",
		RequestTimeout:  30 * time.Second,
		LogLevel:        "info",
		LogMode:         "dev",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("minimal config is valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("bad url rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.APIBaseURL = "not a url"
		err := cfg.Validate()
		require.Error(t, err)
		var cerr *errs.ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "APIBaseURL", cerr.Details["field"])
	})

	t.Run("zero timeout rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.RequestTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown log level rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogLevel = "chatty"
		assert.Error(t, cfg.Validate())
	})
}

func TestRequireModelSide(t *testing.T) {
	cfg := validConfig()
	err := cfg.RequireModelSide()
	require.Error(t, err)
	var cerr *errs.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Details, "SEMASYNC_TENANT_ID")
	assert.Contains(t, cerr.Details, "SEMASYNC_DATASET")

	cfg.TenantID = "tenant"
	cfg.ClientID = "client"
	cfg.ClientSecret = "secret"
	cfg.WorkspaceID = "ws"
	cfg.DatasetName = "sales"
	assert.NoError(t, cfg.RequireModelSide())
}

func TestRequireWarehouse(t *testing.T) {
	cfg := validConfig()
	assert.Error(t, cfg.RequireWarehouse())
	cfg.DatabaseURL = "postgres://localhost:5432/dw"
	assert.NoError(t, cfg.RequireWarehouse())
}

func TestLakeConfigured(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.LakeConfigured())
	cfg.LakeEndpoint = "https://lake.example.com"
	cfg.LakeAccessKey = "key"
	cfg.LakeSecretKey = "secret"
	cfg.LakeBucket = "lakehouse"
	assert.True(t, cfg.LakeConfigured())
}
