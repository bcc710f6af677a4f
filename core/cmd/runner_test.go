package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	coretelegram "github.com/m3rciful/guideshop/core/telegram"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("SHOP_CONFIG", "/etc/shop.yaml")

	got, err := ResolveConfigPath("flag.yaml", "SHOP_CONFIG", "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", got)

	got, err = ResolveConfigPath("", "SHOP_CONFIG", "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/shop.yaml", got)

	t.Setenv("CONFIG_PATH", "")
	got, err = ResolveConfigPath("", "", "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", got)

	_, err = ResolveConfigPath("", "", "")
	assert.Error(t, err)
}

func TestRunRequiresHooks(t *testing.T) {
	assert.Error(t, Run(Options{}))
}

type carrier struct{ core *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.core }

type stubApp struct {
	started, stopped bool
}

func (a *stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { a.started = true; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { a.stopped = true; return nil },
	}, nil
}

func TestRunWrapsLifecycle(t *testing.T) {
	app := &stubApp{}
	var loaded string
	shutdowns := 0
	err := Run(Options{
		ConfigPath: "shop.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { shutdowns++; return nil },
		RunTelegram: func(ctx context.Context, ro coretelegram.RunOptions) error {
			require.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
			return ro.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "shop.yaml", loaded)
	assert.True(t, app.started)
	assert.True(t, app.stopped)
	assert.Equal(t, 1, shutdowns)
}

func TestRunRejectsMissingCore(t *testing.T) {
	boom := errors.New("boom")
	err := Run(Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return carrier{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, boom)

	err = Run(Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return carrier{core: &coreconfig.Config{}}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)
}
