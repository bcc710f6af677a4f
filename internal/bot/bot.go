package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	"github.com/m3rciful/guideshop/core/logger"
	tg "github.com/m3rciful/guideshop/core/telegram"
	"github.com/m3rciful/guideshop/core/telegram/callbacks"
	"github.com/m3rciful/guideshop/core/telegram/commands"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"
	"github.com/m3rciful/guideshop/core/telegram/router"
	"github.com/m3rciful/guideshop/internal/catalog"
	"github.com/m3rciful/guideshop/internal/payment"
	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/submission"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

// Outbound is the Messenger plus uploads of generated files.
type Outbound interface {
	shop.Messenger
	SendFile(ctx context.Context, chatID int64, fileName string, body []byte, caption string) error
	Notify(ctx context.Context, chatID int64, text string) error
}

// Options are the bot dependencies.
type Options struct {
	Telegram   coreconfig.TelegramConfig
	Submission *submission.Workflow
	Payment    *payment.Orchestrator
	Views      shop.ViewLog
	Out        Outbound
	// ErrorReportEvery throttles error reports to the primary admin. Defaults to a minute.
	ErrorReportEvery time.Duration
}

// Bot maps Telegram updates onto the shop workflows.
type Bot struct {
	opts Options

	answer func(c tele.Context, text string) error
	accept func(c tele.Context, errorMessage ...string) error
	now    func() time.Time

	reportMu   sync.Mutex
	lastReport time.Time
}

// New builds a Bot.
func New(opts Options) *Bot {
	if opts.ErrorReportEvery <= 0 {
		opts.ErrorReportEvery = time.Minute
	}
	return &Bot{
		opts:   opts,
		answer: callbacks.Answer,
		accept: func(c tele.Context, errorMessage ...string) error { return c.Accept(errorMessage...) },
		now:    time.Now,
	}
}

func (b *Bot) adminOpts() router.CommandRouteOptions {
	return router.CommandRouteOptions{
		IsAdmin:       b.opts.Telegram.IsAdmin,
		OnAdminReject: b.notForYou,
	}
}

func (b *Bot) say(ctx context.Context, chatID int64, text string, kb *shop.Keyboard) {
	if _, err := b.opts.Out.SendText(ctx, chatID, text, kb); err != nil {
		logger.Warn(ctx, component, "reply.send",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
	}
}

func mainKeyboard() *shop.Keyboard {
	row := make([]string, 0, len(shop.Kinds()))
	for _, k := range shop.Kinds() {
		row = append(row, menuLabel(k))
	}
	return &shop.Keyboard{Reply: [][]string{row}}
}

func adminKeyboard() *shop.Keyboard {
	kb := &shop.Keyboard{}
	for _, k := range shop.Kinds() {
		kb.Inline = append(kb.Inline, []shop.Button{{Text: addLabel(k), Unique: k.AddUnique()}})
	}
	for _, k := range shop.Kinds() {
		kb.Inline = append(kb.Inline, []shop.Button{{Text: deleteLabel(k), Unique: k.DeleteUnique()}})
	}
	kb.Inline = append(kb.Inline, []shop.Button{{Text: labelStats, Unique: uniqueStats}})
	return kb
}

// Register adds commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	var errs []error
	errs = append(errs, reg.RegisterCommand("/start", commands.Command{Handler: b.start, Description: "Главное меню"}))
	for _, k := range shop.Kinds() {
		errs = append(errs, reg.RegisterCommand("/"+k.String()+"s", commands.Command{
			Handler:     b.browse(k),
			Description: k.Plural(),
			Aliases:     []string{menuLabel(k)},
		}))
	}
	errs = append(errs,
		reg.RegisterCommand("/admin", commands.Command{Handler: b.adminMenu, Description: "Меню администратора", AdminOnly: true}),
		reg.RegisterCommand("/stats", commands.Command{Handler: b.stats, Description: "Статистика просмотров", AdminOnly: true}),
	)

	guard := func(h tele.HandlerFunc) tele.HandlerFunc { return router.AdminGuard(b.adminOpts(), h) }
	cbs := map[string]tele.HandlerFunc{
		payment.UniquePayStars:    b.payStars,
		payment.UniquePayTransfer: b.payTransfer,
		uniqueStats:               guard(b.stats),
	}
	for _, k := range shop.Kinds() {
		cbs[k.SelectUnique()] = b.selectItem(k)
		cbs[k.AddUnique()] = guard(b.startSubmission(k))
		cbs[k.DeleteUnique()] = guard(b.removeMenu(k))
		cbs[k.RemoveUnique()] = guard(b.removeItem(k))
	}
	for _, d := range payment.Decisions() {
		cbs[d.Unique()] = guard(b.decide(d))
	}
	for key, h := range cbs {
		errs = append(errs, reg.RegisterCallback(key, h))
	}
	reg.SetCallbackFallback(func(c tele.Context) error { return b.answer(c, textBadButton) })
	return errors.Join(errs...)
}

// Routes returns every route of the bot. Register must run first.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, b.adminOpts())
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Admin:   b.adminOpts(),
		Flows:   []router.Flow{submissionFlow{b}, paymentFlow{b}},
		Unknown: b.unknown,
	})...)
	return append(routes,
		tg.Route{Endpoint: tele.OnCheckout, Handler: b.checkout},
		tg.Route{Endpoint: tele.OnPayment, Handler: b.paid},
	)
}

func (b *Bot) start(c tele.Context) error {
	text := textWelcome
	if b.opts.Telegram.IsAdmin(c.Sender().ID) {
		text += textWelcomeAdmin
	}
	b.say(tghelpers.BuildContext(c), c.Sender().ID, text, mainKeyboard())
	return nil
}

func (b *Bot) unknown(c tele.Context) error {
	b.say(tghelpers.BuildContext(c), c.Sender().ID, textUnknown, mainKeyboard())
	return nil
}

func (b *Bot) notForYou(c tele.Context) error {
	if c.Callback() != nil {
		return b.answer(c, textNotForYou)
	}
	b.say(tghelpers.BuildContext(c), c.Sender().ID, textNotForYou, nil)
	return nil
}

// OnLimited tells a rate limited sender to slow down.
func (b *Bot) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return b.answer(c, textTooFast)
	}
	return nil
}

func (b *Bot) browse(k shop.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.opts.Payment.Browse(tghelpers.BuildContext(c), c.Sender().ID, k)
	}
}

func (b *Bot) adminMenu(c tele.Context) error {
	b.say(tghelpers.BuildContext(c), c.Sender().ID, textAdminMenu, adminKeyboard())
	return nil
}

func (b *Bot) stats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	views, err := b.opts.Views.Views(ctx)
	if err != nil {
		b.say(ctx, c.Sender().ID, textTryLater, nil)
		return err
	}
	report := catalog.Report(catalog.Summarize(views))
	return b.opts.Out.SendFile(ctx, c.Sender().ID, statsFile, []byte(report), textStatsCaption)
}

func (b *Bot) selectItem(k shop.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		u := c.Sender()
		return b.opts.Payment.Select(tghelpers.BuildContext(c), payment.Buyer{ID: u.ID, Username: u.Username}, k, callbacks.Payload(c))
	}
}

func (b *Bot) payStars(c tele.Context) error {
	return b.opts.Payment.ChooseStars(tghelpers.BuildContext(c), c.Sender().ID)
}

func (b *Bot) payTransfer(c tele.Context) error {
	return b.opts.Payment.ChooseTransfer(tghelpers.BuildContext(c), c.Sender().ID)
}

func (b *Bot) startSubmission(k shop.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.opts.Submission.Start(tghelpers.WithFlow(c, "submission"), c.Sender().ID, k)
	}
}

func (b *Bot) removeMenu(k shop.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.opts.Submission.RemoveMenu(tghelpers.BuildContext(c), c.Sender().ID, k)
	}
}

func (b *Bot) removeItem(k shop.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.opts.Submission.Remove(tghelpers.BuildContext(c), c.Sender().ID, k, callbacks.Payload(c))
	}
}

func (b *Bot) decide(d payment.Decision) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.WithFlow(c, "payment")
		buyerID, token, err := payment.ParseDecisionData(callbacks.Payload(c))
		if err == nil {
			err = b.opts.Payment.Decide(ctx, c.Sender().ID, buyerID, token, d)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, payment.ErrStale) {
			logger.Info(ctx, component, "decision.stale",
				slog.String("status", "stale"),
				slog.String("action", string(d)),
				slog.String("err", err.Error()),
			)
			return b.answer(c, textStale)
		}
		return err
	}
}

func (b *Bot) checkout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil || q.Sender == nil {
		return nil
	}
	if b.opts.Payment.PreCheckout(tghelpers.BuildContext(c), q.Sender.ID, q.Payload) {
		return b.accept(c)
	}
	return b.accept(c, textCheckoutFail)
}

func (b *Bot) paid(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}
	return b.opts.Payment.Paid(tghelpers.WithFlow(c, "payment"), c.Sender().ID, msg.Payment.Payload, msg.Payment.TelegramChargeID)
}

// ReportError logs a handler error and forwards it to the primary admin at most once per ErrorReportEvery.
func (b *Bot) ReportError(c tele.Context, err error) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, component, "handler.error",
		append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)

	admin := b.opts.Telegram.PrimaryAdmin()
	if admin == 0 || !b.reportDue() {
		return
	}
	handler := logger.HandlerFrom(ctx)
	if handler == "" {
		handler = "unknown"
	}
	if sendErr := b.opts.Out.Notify(ctx, admin, textErrorReport(handler, err)); sendErr != nil {
		logger.Warn(ctx, component, "error.report",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(sendErr)...)...)
	}
}

// OnError adapts ReportError to tele.Settings.OnError.
func (b *Bot) OnError(err error, c tele.Context) { b.ReportError(c, err) }

func (b *Bot) reportDue() bool {
	b.reportMu.Lock()
	defer b.reportMu.Unlock()
	now := b.now()
	if !b.lastReport.IsZero() && now.Sub(b.lastReport) < b.opts.ErrorReportEvery {
		return false
	}
	b.lastReport = now
	return true
}

type submissionFlow struct{ b *Bot }

func (submissionFlow) Name() string { return "submission" }

func (f submissionFlow) HandleMessage(c tele.Context) (bool, error) {
	id := c.Sender().ID
	if !f.b.opts.Telegram.IsAdmin(id) {
		return false, nil
	}
	return f.b.opts.Submission.Handle(tghelpers.WithFlow(c, "submission"), id, InputFrom(c.Message()))
}

type paymentFlow struct{ b *Bot }

func (paymentFlow) Name() string { return "payment" }

func (f paymentFlow) HandleMessage(c tele.Context) (bool, error) {
	return f.b.opts.Payment.HandleMessage(tghelpers.WithFlow(c, "payment"), c.Sender().ID, InputFrom(c.Message()))
}
