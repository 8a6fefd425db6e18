package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Load config from an empty workspace with no config file present
	workspace := t.TempDir()

	cfg, err := Load(workspace)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, workspace, cfg.Workspace)
	assert.Equal(t, DefaultImageURL, cfg.Image.URL)
	assert.Empty(t, cfg.Image.SHA256)
	assert.Equal(t, DefaultMemoryMB, cfg.Defaults.MemoryMB)
	assert.Equal(t, DefaultDiskSize, cfg.Defaults.DiskSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadFromFile(t *testing.T) {
	workspace := t.TempDir()

	content := []byte(`
image:
  url: http://mirror.example.com/base.qcow2
  sha256: deadbeef
defaults:
  memory_mb: 2048
  disk_size: 20G
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "config.yaml"), content, 0644))

	cfg, err := Load(workspace)
	require.NoError(t, err)

	assert.Equal(t, "http://mirror.example.com/base.qcow2", cfg.Image.URL)
	assert.Equal(t, "deadbeef", cfg.Image.SHA256)
	assert.Equal(t, 2048, cfg.Defaults.MemoryMB)
	assert.Equal(t, "20G", cfg.Defaults.DiskSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMalformedFile(t *testing.T) {
	workspace := t.TempDir()

	content := []byte("image:\n  url: [unclosed")
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "config.yaml"), content, 0644))

	_, err := Load(workspace)
	assert.Error(t, err)
}

func TestPublicKeyInline(t *testing.T) {
	cfg := &Config{
		SSH: SSH{PublicKey: "ssh-ed25519 AAAAC3Nza lab@host\n"},
	}

	key, err := cfg.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAAC3Nza lab@host", key)
}

func TestPublicKeyFromPath(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_ed25519.pub")
	require.NoError(t, os.WriteFile(keyPath, []byte("ssh-ed25519 AAAAC3Nza lab@host\n"), 0644))

	cfg := &Config{
		SSH: SSH{PublicKeyPath: keyPath},
	}

	key, err := cfg.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAAC3Nza lab@host", key)
}

func TestPublicKeyMissingFile(t *testing.T) {
	cfg := &Config{
		SSH: SSH{PublicKeyPath: filepath.Join(t.TempDir(), "nope.pub")},
	}

	_, err := cfg.PublicKey()
	assert.Error(t, err)
}

func TestPublicKeyNotConfigured(t *testing.T) {
	cfg := &Config{}

	key, err := cfg.PublicKey()
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestImageFileName(t *testing.T) {
	cfg := &Config{
		Image: Image{URL: "https://mirror.example.com/images/base-22.04.qcow2"},
	}

	assert.Equal(t, "base-22.04.qcow2", cfg.ImageFileName())
}
