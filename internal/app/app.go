// Package app wires the shop components onto the Telegram runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/guideshop/core/bootstrap"
	corecmd "github.com/m3rciful/guideshop/core/cmd"
	"github.com/m3rciful/guideshop/core/logger"
	tg "github.com/m3rciful/guideshop/core/telegram"
	"github.com/m3rciful/guideshop/core/telegram/middleware"
	"github.com/m3rciful/guideshop/core/telegram/sender"
	"github.com/m3rciful/guideshop/core/telegram/state"
	"github.com/m3rciful/guideshop/internal/bot"
	"github.com/m3rciful/guideshop/internal/catalog"
	"github.com/m3rciful/guideshop/internal/config"
	"github.com/m3rciful/guideshop/internal/health"
	"github.com/m3rciful/guideshop/internal/payment"
	"github.com/m3rciful/guideshop/internal/reaper"
	"github.com/m3rciful/guideshop/internal/session"
	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/submission"
	"github.com/m3rciful/guideshop/internal/validate"

	tele "gopkg.in/telebot.v4"
)

const component = "app"

// drainTimeout bounds how long shutdown waits for queued updates.
const drainTimeout = 10 * time.Second

// Options tune New.
type Options struct {
	// Offline builds a bot that never talks to Telegram.
	Offline bool
}

// App owns every long-lived component.
type App struct {
	cfg   *config.Config
	infra *bootstrap.Result

	tele       *tele.Bot
	dispatcher *sender.Dispatcher
	registry   *tg.Registry
	messenger  *bot.Messenger
	reaper     *reaper.Reaper

	catalog shop.Catalog
	views   shop.ViewLog
	store   session.Store
	sweeper state.Sweeper

	payment *payment.Orchestrator
	bot     *bot.Bot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Bootstrap is the cmd.Options.Bootstrap hook: logger, migrations, database, then New.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.DatabaseConfig(),
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, infra, Options{})
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

// New builds the application. infra.DB must be set when cfg uses Postgres.
func New(cfg *config.Config, infra *bootstrap.Result, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if infra == nil {
		infra = &bootstrap.Result{}
	}
	if cfg.UsesDatabase() && infra.DB == nil {
		return nil, errors.New("app: postgres driver selected but no database connection")
	}

	a := &App{cfg: cfg, infra: infra, registry: tg.NewRegistry()}

	tb, err := tg.NewBot(cfg.CoreConfig(), tg.BotOptions{
		Synchronous: true,
		OnError:     a.onError,
		Offline:     opts.Offline,
	})
	if err != nil {
		return nil, err
	}
	a.tele = tb
	a.dispatcher = sender.NewDispatcher(sender.Options{MaxRetries: 2})
	a.messenger = bot.NewMessenger(tb, a.dispatcher)
	a.reaper = reaper.New(a.messenger)

	a.catalog, a.views = buildStorage(cfg.Storage.Driver, infra.DB)
	a.store, a.sweeper = buildSessions(cfg.Session, infra.DB, a.onExpire)

	a.payment = payment.New(a.store, a.catalog, a.views, a.messenger, a.reaper, payment.Config{
		ReviewAdminID:   cfg.ReviewAdminID(),
		FallbackAdminID: cfg.Telegram.PrimaryAdmin(),
		TransferPhone:   cfg.Shop.TransferPhone,
		ReceiptMaxBytes: int64(cfg.Shop.ReceiptMaxMB) * validate.MiB,
		PromptTTL:       cfg.Shop.PromptTTL,
		CancelKeyword:   cfg.Shop.CancelKeyword,
	})
	sub := submission.New(a.store, a.catalog, a.messenger, submission.Config{
		PhotoMaxBytes: int64(cfg.Shop.PhotoMaxMB) * validate.MiB,
		FileMaxBytes:  int64(cfg.Shop.FileMaxMB) * validate.MiB,
		PriceMin:      cfg.Shop.PriceMin,
		PriceMax:      cfg.Shop.PriceMax,
	})

	a.bot = bot.New(bot.Options{
		Telegram:   cfg.Telegram,
		Submission: sub,
		Payment:    a.payment,
		Views:      a.views,
		Out:        a.messenger,
	})
	if err := a.bot.Register(a.registry); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}

	logger.Info(context.Background(), component, "wired",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("sessions", cfg.Session.Driver),
		slog.Int64("review_admin", cfg.ReviewAdminID()),
		slog.Int("callbacks", len(a.registry.ListCallbacks())),
	)
	return a, nil
}

func buildStorage(driver string, db *sqlx.DB) (shop.Catalog, shop.ViewLog) {
	if driver == config.DriverPostgres {
		return catalog.NewPostgres(db), catalog.NewPostgresViewLog(db)
	}
	return catalog.NewMemory(), catalog.NewMemoryViewLog()
}

func buildSessions(cfg config.SessionConfig, db *sqlx.DB, onEvict state.EvictFunc[session.Session]) (session.Store, state.Sweeper) {
	if cfg.Driver == config.DriverPostgres {
		s := state.NewSQLStore[session.Session](db, cfg.TTL, onEvict)
		return s, s
	}
	s := state.NewMemoryStore[session.Session](cfg.TTL, state.WithEvict[session.Session](onEvict))
	return s, s
}

// onExpire closes handshakes of purchase sessions dropped by TTL.
func (a *App) onExpire(ctx context.Context, actor int64, s session.Session) {
	if a.payment == nil || s.Flow != session.FlowPurchase {
		return
	}
	a.payment.Expire(ctx, actor, s)
}

func (a *App) onError(err error, c tele.Context) {
	if a.bot == nil {
		logger.Error(context.Background(), component, "handler.error",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
		return
	}
	a.bot.OnError(err, c)
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	serializer := middleware.NewSerializer(a.bot.ReportError)
	return tg.RunOptions{
		Config:     core,
		Bot:        a.tele,
		Registry:   a.registry,
		Dispatcher: a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(core, tg.ChainOptions{
			Serializer: serializer,
			OnLimited:  a.bot.OnLimited,
		}),
		Routes:  a.bot.Routes(a.registry),
		OnStart: a.start,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return a.stop(ctx, serializer)
		},
	}, nil
}

// HealthHandler serves /healthz and /stats for this app.
func (a *App) HealthHandler() *health.Server {
	opts := health.Options{
		Views:      a.views,
		Outcomes:   a.payment.Outcomes,
		Pending:    a.reaper.Pending,
		SendErrors: a.dispatcher.ErrorCount,
	}
	if a.infra.DB != nil {
		opts.DB = a.infra.DB
	}
	return health.New(opts)
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		state.RunJanitor(bg, a.sweeper, a.cfg.Session.SweepInterval)
	}()

	if addr := a.cfg.Health.Listen; addr != "" {
		h := a.HealthHandler().Router()
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := health.Serve(bg, addr, h); err != nil {
				logger.Error(bg, "http", "serve",
					append([]slog.Attr{slog.String("status", "fail"), slog.String("listen", addr)}, logger.ErrAttrs(err)...)...)
			}
		}()
	}
	return nil
}

// stop drains queued updates, cancels pending deletions and closes the database.
func (a *App) stop(ctx context.Context, serializer *middleware.Serializer) error {
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := serializer.Wait(drainCtx); err != nil {
		logger.Warn(ctx, component, "drain",
			slog.String("status", "fail"),
			slog.Int("active", serializer.Active()),
		)
	}

	pending := a.reaper.Pending()
	a.reaper.Close()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	err := a.infra.Close()
	logger.Info(ctx, component, "stopped",
		slog.String("status", logger.Status(err)),
		slog.Int("reaper_dropped", pending),
	)
	return err
}
