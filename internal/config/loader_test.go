package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
service:
  log_level: debug
kernel:
  max_irq: 63
  cores: 4
trace:
  path: ./data/trace.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "capinvoke", cfg.Service.Name)
	assert.Equal(t, uint64(63), cfg.Kernel.MaxIRQ)
	assert.Equal(t, 4, cfg.Kernel.Cores)
	assert.Equal(t, "./data/trace.db", cfg.Trace.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Listen)
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "kernel:\n  cores: 2\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Kernel.Cores)
}

func TestLoadInterpolatesEnv(t *testing.T) {
	t.Setenv("CAPINVOKE_TRACE", "/tmp/trace.db")
	dir := t.TempDir()
	path := writeConfig(t, dir, "trace:\n  path: ${CAPINVOKE_TRACE}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/trace.db", cfg.Trace.Path)
}

func TestLoadRejectsUnsetEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "api:\n  listen: ${CAPINVOKE_UNSET_LISTEN}\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.listen: environment variable ${CAPINVOKE_UNSET_LISTEN} is not set")
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Service.LogLevel = "loud"
	cfg.Kernel.Cores = 0
	cfg.Kernel.MaxIRQ = MaxIRQLimit + 1

	err := Validate(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service.log_level")
	assert.Contains(t, err.Error(), "kernel.cores")
	assert.Contains(t, err.Error(), "kernel.max_irq")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadVerifiesChecksums(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "kernel:\n  cores: 2\n")
	_, err := GenerateChecksumsWithReport(dir, []string{ConfigFileName}, false)
	require.NoError(t, err)

	_, err = Load(path)
	require.NoError(t, err)

	writeConfig(t, dir, "kernel:\n  cores: 3\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}
