package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int    `json:"port"`
	BaseUrl string `json:"base_url"`
	Limits  struct {
		MaxSessions int `json:"max_sessions"`
	} `json:"limits"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		port: 8000,
		base_url: "https://hub.ucd.ie/usis/",
		limits: { max_sessions: 4 },
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ port: 9000 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "https://hub.ucd.ie/usis/", cfg.BaseUrl)
	require.Equal(t, 4, cfg.Limits.MaxSessions)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigOr(t *testing.T) {
	dir := t.TempDir()
	fallback := testConfig{Port: 8000, BaseUrl: "https://example.com/"}

	cfg, err := ReadConfigOr(filepath.Join(dir, "config.json5"), fallback)
	require.NoError(t, err)
	require.Equal(t, fallback, cfg)

	writeFile(t, filepath.Join(dir, "config.json5"), `{ port: 1234 }`)
	cfg, err = ReadConfigOr(filepath.Join(dir, "config.json5"), fallback)
	require.NoError(t, err)
	require.Equal(t, 1234, cfg.Port)
	require.Equal(t, "https://example.com/", cfg.BaseUrl)
}

func TestSplitExt(t *testing.T) {
	table := []struct {
		input  string
		prefix string
		ext    string
	}{
		{input: "config.json5", prefix: "config", ext: "json5"},
		{input: "config.local.json5", prefix: "config.local", ext: "json5"},
		{input: "config", prefix: "config", ext: ""},
	}
	for _, row := range table {
		prefix, ext := splitExt(row.input)
		require.Equal(t, row.prefix, prefix)
		require.Equal(t, row.ext, ext)
	}
}
