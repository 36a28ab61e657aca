package app

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 720*time.Hour, cfg.ReportsRetention)
	require.Equal(t, 10, cfg.ReportsRatePerMin)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SESSION_SECRET=from-file\nCSRF_SECRET=c\nREPORTS_DIR=/srv/reports\n"), 0o600))
	t.Setenv("REPORTS_DIR", "/env/wins")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	os.Unsetenv("SESSION_SECRET")
	os.Unsetenv("CSRF_SECRET")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.SessionSecret)
	require.Equal(t, "/env/wins", cfg.ReportsDir)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestInTestModeFollowsEnvironment(t *testing.T) {
	require.Equal(t, "1", os.Getenv(TestModeEnv))
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	require.True(t, InTestMode(), "the flag is read once per process")
}
