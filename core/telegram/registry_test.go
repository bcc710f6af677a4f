package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	"github.com/m3rciful/guideshop/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/guides", commands.Command{Handler: noop, Description: "guides", Aliases: []string{"📖 Гайды"}}))
	require.NoError(t, reg.RegisterCommand("/admin", commands.Command{Handler: noop, Description: "admin", AdminOnly: true}))

	for _, text := range []string{"/guides", "/guides@shop_bot", "/guides now", "📖 Гайды", " 📖 Гайды "} {
		key, _, ok := reg.LookupCommand(text)
		require.True(t, ok, text)
		assert.Equal(t, "/guides", key)
	}
	_, _, ok := reg.LookupCommand("guides")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("")
	assert.False(t, ok)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "/guides", visible[0].Text)
	assert.Len(t, reg.ListCommands(false), 2)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, reg.RegisterCommand("/start", commands.Command{Description: "x"}), ErrInvalidRegistration)
	assert.Empty(t, reg.Commands())
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "y"}))

	require.NoError(t, reg.RegisterCallback("sel_guide", noop))
	assert.Error(t, reg.RegisterCallback("sel_guide", noop))
	assert.ErrorIs(t, reg.RegisterCallback("", noop), ErrInvalidRegistration)
	assert.Equal(t, []string{"sel_guide"}, reg.ListCallbacks())
}

func TestCallbackFallback(t *testing.T) {
	reg := NewRegistry()
	h, ok := reg.Callback("missing")
	assert.False(t, ok)
	assert.NotNil(t, h)

	var hits int
	reg.SetCallbackFallback(func(tele.Context) error { hits++; return nil })
	reg.SetCallbackFallback(nil)
	h, ok = reg.Callback("missing")
	assert.False(t, ok)
	require.NoError(t, h(nil))
	assert.Equal(t, 1, hits)
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "Webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://x"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, AllowedUpdates, wh.AllowedUpdates)

	lp, ok := BuildPoller(PollerOptions{RunMode: RunModeLongpoll}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)
	assert.Contains(t, lp.AllowedUpdates, "pre_checkout_query")
}

func TestHTTPClientOutlastsPoll(t *testing.T) {
	c := BuildHTTPClient(50)
	assert.Greater(t, c.Timeout, 50*time.Second)
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	var names []string
	for _, mw := range DefaultMiddlewares(cfg, ChainOptions{}) {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"dedup", "recover", "rate_limit", "logger", "metrics"}, names)

	names = names[:0]
	for _, mw := range DefaultMiddlewares(nil, ChainOptions{}) {
		names = append(names, mw.Name)
	}
	assert.NotContains(t, names, "rate_limit")
}
