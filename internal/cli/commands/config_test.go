package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbites/storefront/internal/cli/config"
)

func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewConfigCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := runConfig(t, "init", "--api-url", "https://shop.example.com/api/v1")
	require.NoError(t, err)
	assert.Contains(t, out, "Created ./quickbites.yaml")

	cfg, err := config.LoadFile(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/api/v1", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, config.BackendKeyring, cfg.SessionBackend)
}

func TestConfigInit_UpdatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("timeout: 3s\nsession_backend: file\n"), 0644))

	out, err := runConfig(t, "init", "--web-url", "https://shop.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated ./quickbites.yaml")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, config.BackendFile, cfg.SessionBackend)
	assert.Equal(t, "https://shop.example.com", cfg.WebURL)
}

func TestConfigInit_ForceRestoresDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("timeout: 3s\n"), 0644))

	_, err := runConfig(t, "init", "--force")
	require.NoError(t, err)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestConfigInit_InvalidValueIsNotWritten(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := runConfig(t, "init", "--session-backend", "vault")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session_backend 'vault'")

	_, err = os.Stat(filepath.Join(dir, config.ConfigFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigShow_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: https://staging.example.com/api/v1\n"), 0644))

	out, err := runConfig(t, "show", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, "api_url: https://staging.example.com/api/v1")
	assert.Contains(t, out, "timeout: 15s")
}

func TestConfigShow_Effective(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUICKBITES_API_URL", "http://127.0.0.1:9999/api/v1")

	out, err := runConfig(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# defaults")
	assert.Contains(t, out, "api_url: http://127.0.0.1:9999/api/v1")
}
