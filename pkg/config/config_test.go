package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGettersFallBackOnInvalidValues(t *testing.T) {
	t.Setenv("CS_TEST_INT", "nope")
	t.Setenv("CS_TEST_BOOL", "maybe")
	t.Setenv("CS_TEST_DURATION", "soon")

	assert.Equal(t, 7, GetInt("CS_TEST_INT", 7))
	assert.True(t, GetBool("CS_TEST_BOOL", true))
	assert.Equal(t, time.Second, GetDuration("CS_TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", GetString("CS_TEST_UNSET", "fallback"))
}

func TestLoadFileIsOverriddenByEnvironment(t *testing.T) {
	t.Cleanup(ResetFile)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("API_ADDR: \":7000\"\nredis_db: 3\nMAIL_PROVIDER: resend\n"), 0o600))
	require.NoError(t, LoadFile(path))

	t.Setenv("MAIL_PROVIDER", "sendgrid")

	assert.Equal(t, ":7000", GetString("API_ADDR", ":5000"))
	assert.Equal(t, 3, GetInt("REDIS_DB", 0))
	assert.Equal(t, "sendgrid", GetString("MAIL_PROVIDER", "log"))
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	t.Cleanup(ResetFile)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: [unterminated"), 0o600))
	assert.Error(t, LoadFile(path))
}

func TestLoadDotEnvIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CS_DOTENV_KEY=from-file\n"), 0o600))
	t.Setenv("CS_DOTENV_KEY", "")
	require.NoError(t, os.Unsetenv("CS_DOTENV_KEY"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	t.Cleanup(func() { _ = os.Unsetenv("CS_DOTENV_KEY") })
	assert.Equal(t, "from-file", os.Getenv("CS_DOTENV_KEY"))
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Cleanup(ResetFile)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("VERIFICATION_CODE_TTL_MIN", "10")
	t.Setenv("RESET_TOKEN_TTL_MIN", "60")

	cfg := LoadAPIConfig()
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.False(t, cfg.AvatarsEnabled())
}
