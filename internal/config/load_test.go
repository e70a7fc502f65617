package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_NoFile_WritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Defaults().Host, cfg.Host)
	require.FileExists(t, path)
}

func TestLoad_ExistingFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path, Config{Host: "0.0.0.0", Port: 9999}))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 9999, cfg.Port)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Defaults()
	want.Port = 12345

	require.NoError(t, WriteDefault(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want.Port, got.Port)
}
