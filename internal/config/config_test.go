package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[telegram]
bot_token = "123:abc"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "123:abc", cfg.Telegram.BotToken)
	require.Equal(t, DefaultPollTimeout, cfg.Telegram.PollTimeout)
	require.Equal(t, DefaultPGHost, cfg.Postgres.Host)
	require.Equal(t, DefaultPGPort, cfg.Postgres.Port)
	require.Equal(t, DefaultReminderPattern, cfg.Reminder.Pattern)
	require.Equal(t, DefaultSessionIdleTTL, cfg.Session.IdleTTL)
	require.True(t, cfg.Reminder.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[log]
level = "debug"
format = "json"

[postgres]
host = "db.internal"
port = 6432
database = "reports"

[reminder]
pattern = "30 17 * * 1-5"
enabled = false

[telegram]
bot_token = "tok"
poll_timeout = 60
send_rate_per_sec = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "db.internal", cfg.Postgres.Host)
	require.Equal(t, 6432, cfg.Postgres.Port)
	require.Equal(t, "reports", cfg.Postgres.Database)
	require.Equal(t, "30 17 * * 1-5", cfg.Reminder.Pattern)
	require.False(t, cfg.Reminder.Enabled)
	require.Equal(t, 60, cfg.Telegram.PollTimeout)
	require.Equal(t, 10, cfg.Telegram.SendRatePerSec)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
