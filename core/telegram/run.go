package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	"github.com/m3rciful/guideshop/core/logger"
	tgsender "github.com/m3rciful/guideshop/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// BotOptions tunes NewBot.
type BotOptions struct {
	// Synchronous delivers updates one by one on the poller goroutine.
	Synchronous bool
	OnError     func(error, tele.Context)
	Client      *http.Client
	// Offline skips the getMe call. The bot cannot reach the API.
	Offline bool
}

// NewBot builds a bot for cfg without starting it.
func NewBot(cfg *coreconfig.Config, opts BotOptions) (*tele.Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config provided")
	}
	client := opts.Client
	if client == nil {
		client = BuildHTTPClient(cfg.Telegram.LongPollTimeoutSeconds)
	}
	settings := tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
			Webhook: WebhookOptions{
				Listen: cfg.Webhook.Listen,
				Port:   cfg.Webhook.Port,
				URL:    cfg.Webhook.URL,
			},
		}),
		Client:      client,
		Synchronous: opts.Synchronous,
		OnError:     opts.OnError,
		Offline:     opts.Offline,
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Bot      *tele.Bot
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram wires middlewares and routes onto the bot and blocks until ctx is
// done or the poller stops. OnStop always gets a context that is not canceled.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	rt, err := prepare(opts)
	if err != nil {
		return err
	}
	defer rt.Dispatcher.Close()

	announceMode(ctx, rt.Bot, opts.Config, opts.DisableWebhookCleanup)
	wire(rt, opts)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	runErr := serve(ctx, rt.Bot)
	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// prepare fills the runtime, building whatever opts leave nil.
func prepare(opts RunOptions) (Runtime, error) {
	rt := Runtime{Bot: opts.Bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}
	if rt.Bot == nil {
		start := time.Now()
		b, err := NewBot(opts.Config, BotOptions{})
		if err != nil {
			return Runtime{}, err
		}
		rt.Bot = b
		logger.TG.Debug("bot built",
			slog.String("event", "bot.build"),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	return rt, nil
}

// wire registers middlewares in order, then routes, then the command menu.
func wire(rt Runtime, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			rt.Bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			rt.Bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(rt.Bot, rt.Registry)
}

// serve runs the poller until it returns or ctx ends.
func serve(ctx context.Context, b *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.Stop()
		<-done
		return ctx.Err()
	}
}

func announceMode(ctx context.Context, bot *tele.Bot, cfg *coreconfig.Config, skipCleanup bool) {
	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "polling mode",
			slog.String("event", "mode"),
			slog.String("mode", RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
		)
		if !skipCleanup && cfg.Telegram.RunMode == coreconfig.RunModeLongpoll {
			dropWebhook(ctx, bot)
		}
	}
}

// dropWebhook removes a leftover webhook, which would make getUpdates fail with 409.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	err := bot.RemoveWebhook(false)
	attrs := []slog.Attr{
		slog.String("event", "delete_webhook"),
		slog.String("mode", RunModeLongpoll),
		slog.String("status", logger.Status(err)),
	}
	if err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "failed to delete webhook", append(attrs, logger.ErrAttrs(err)...)...)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook deleted", attrs...)
}
