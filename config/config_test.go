package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	require.Equal(t, 30*time.Second, cfg.Server.Timeout)
	require.Equal(t, cfg.DB.DSN, cfg.DB.ReadOnlyDSN)
	require.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	require.Equal(t, 15*time.Second, cfg.Notifications.Timeout)
	require.Equal(t, 8, cfg.Notifications.Concurrency)
	require.Equal(t, "PN16", cfg.Consolidation.PressureClass)
	require.Equal(t, time.Hour, cfg.Reminders.Interval)
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
environment: production
database:
  dsn: postgresql://app@db:5432/procurement
  read_only_dsn: postgresql://app@replica:5432/procurement
notifications:
  concurrency: 3
capabilities:
  version: "2026-02"
  category_capabilities:
    FASTENERS: fasteners_gaskets
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("PROCUREMENT_SERVER_ADDRESS", "127.0.0.1:9090")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	require.Equal(t, "postgresql://app@replica:5432/procurement", cfg.DB.ReadOnlyDSN)
	require.Equal(t, 3, cfg.Notifications.Concurrency)

	mapping := cfg.Capabilities.Mapping()
	require.Equal(t, "2026-02", mapping.Version())
	key, ok := mapping.CapabilityForCategory("fasteners")
	require.True(t, ok)
	require.Equal(t, capability.FastenersGaskets, key)
}

func TestFormatIndex(t *testing.T) {
	require.Equal(t, "boq-sections", FormatIndex(ElasticConfig{}, "boq-sections"))
	require.Equal(t, "procurement-boq-sections", FormatIndex(ElasticConfig{Prefix: "procurement"}, "boq-sections"))
}
