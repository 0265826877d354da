package exilium

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "exilium", cfg.MongoDatabase)
	assert.Equal(t, "data/db.json", cfg.DataPath)
	assert.Equal(t, 5, cfg.ConnectRetries)
	assert.Equal(t, "@every 2m", cfg.ReconnectEvery)
	assert.Equal(t, DefaultSnapshotTTL, cfg.SnapshotTTL)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"mongo_uri: mongodb://localhost:27017\n"+
			"data_path: /tmp/exilium.json\n"+
			"snapshot_ttl: 30s\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "/tmp/exilium.json", cfg.DataPath)
	assert.Equal(t, 30*time.Second, cfg.SnapshotTTL)
	// Unset keys keep their defaults.
	assert.Equal(t, "exilium", cfg.MongoDatabase)
}

func TestLoadConfigEnvWinsOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mongo_database: from_yaml\n"), 0o644))
	t.Setenv("EXILIUM_MONGO_DATABASE", "from_env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.MongoDatabase)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	t.Setenv("EXILIUM_MONGO_DATABASE", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mongo_database: \"\"\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
