package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestDefaultClientOptions(t *testing.T) {
	cfg := DefaultClientOptions()
	assert.Equal(t, DefaultMaxConnections, cfg.MaxConnections)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultActorCount, cfg.ActorCount)
	assert.Equal(t, DefaultRetryMaxElapsed, cfg.Retry.MaxElapsed)
	assert.Equal(t, DefaultRetryBaseDelay, cfg.Retry.BaseDelay)
	assert.Equal(t, DefaultRetryMaxDelay, cfg.Retry.MaxDelay)
	assert.Empty(t, cfg.DebugAddr)
}

func TestLoad_NoFile_ReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultClientOptions(), cfg)
}

func TestLoad_ValidConfig_ParsesFields(t *testing.T) {
	path := writeTemp(t, `
max_connections: 1000
connect_timeout: 5s
request_timeout: 2s
actor_count: 4
retry:
  max_elapsed: 20s
  base_delay: 50ms
  max_delay: 1s
debug_addr: "127.0.0.1:9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxConnections)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.ActorCount)
	assert.Equal(t, 20*time.Second, cfg.Retry.MaxElapsed)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "127.0.0.1:9090", cfg.DebugAddr)
}

func TestLoad_PartialConfig_FillsDefaultsForRest(t *testing.T) {
	path := writeTemp(t, `max_connections: 42`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxConnections)
	assert.Equal(t, DefaultActorCount, cfg.ActorCount)
	assert.Equal(t, DefaultRetryMaxElapsed, cfg.Retry.MaxElapsed)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	path := writeTemp(t, "not: [valid: yaml")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_NonPositiveField_ReturnsError(t *testing.T) {
	path := writeTemp(t, `max_connections: 0`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	path := writeTemp(t, `max_connections: 42`)
	t.Setenv("COLSTORE_MAX_CONNECTIONS", "99")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.MaxConnections)
}

func TestLoad_InvalidEnvInt_FallsBackToPriorValue(t *testing.T) {
	t.Setenv("COLSTORE_ACTOR_COUNT", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultActorCount, cfg.ActorCount)
}

func TestLoad_InvalidEnvDuration_FallsBackToPriorValue(t *testing.T) {
	t.Setenv("COLSTORE_CONNECT_TIMEOUT", "not-a-duration")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
}

func TestResolvePath_EnvVar_TakesPriority(t *testing.T) {
	t.Setenv("COLSTORE_CONFIG", "/custom/path/colstore.yaml")
	assert.Equal(t, "/custom/path/colstore.yaml", ResolvePath())
}

func TestResolvePath_NoEnvVar_FallsBackToLocalFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()
	require.NoError(t, os.Chdir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "colstore.yaml"), []byte("max_connections: 1"), 0o644))
	assert.Equal(t, "colstore.yaml", ResolvePath())
}

func TestResolvePath_NoEnvVar_NoFile_ReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()
	require.NoError(t, os.Chdir(dir))

	assert.Empty(t, ResolvePath())
}
