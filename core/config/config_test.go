package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() *Config {
	return &Config{Telegram: TelegramConfig{Token: "t", AdminIDs: []int64{10, 20}}}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := valid()
	cfg.Telegram.RunMode = " Polling "
	cfg.RateLimit.ExcludeUpdates = []string{" Callback", "PAYMENT"}

	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{"callback", "payment"}, cfg.RateLimit.ExcludeUpdates)
	assert.True(t, cfg.Telegram.IsAdmin(20))
	assert.False(t, cfg.Telegram.IsAdmin(30))
	assert.Equal(t, int64(10), cfg.Telegram.PrimaryAdmin())
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no token":     func(c *Config) { c.Telegram.Token = "" },
		"no admins":    func(c *Config) { c.Telegram.AdminIDs = nil },
		"bad admin":    func(c *Config) { c.Telegram.AdminIDs = []int64{-1} },
		"bad mode":     func(c *Config) { c.Telegram.RunMode = "push" },
		"webhook url":  func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
		"bad exclude":  func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"inline_query"} },
		"neg timeout":  func(c *Config) { c.Telegram.LongPollTimeoutSeconds = -1 },
		"neg interval": func(c *Config) { c.RateLimit.IntervalMS = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
}

func TestLoadOverlaysEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: from-file\n  admin_ids: [1]\n"), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, []int64{1}, cfg.Telegram.AdminIDs)
}

func TestNormalizeJoinsProblems(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{RunMode: RunModeWebhook}}
	err := Normalize(cfg)
	require.Error(t, err)
	for _, want := range []string{"token is required", "admin_ids", "webhook.url", "webhook.port"} {
		assert.ErrorContains(t, err, want)
	}
}
