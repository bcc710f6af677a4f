package router

import (
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	tghelpers "github.com/m3rciful/guideshop/core/telegram/helpers"
	"github.com/m3rciful/guideshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary overrides fields of the handler.handled line. Empty fields follow the error.
type summary struct {
	status  string
	outcome string
	extras  []slog.Attr
}

// handleWithSummary runs fn under the handler name and logs exactly one handler.handled line.
func handleWithSummary(c tele.Context, name string, s summary, fn func() error) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := fn()
	logSummary(c, name, start, s, err)
	return err
}

func logSummary(c tele.Context, name string, start time.Time, s summary, err error) {
	// the handler may have tagged the context with a flow; read it back after the run.
	ctx := tghelpers.BuildContext(c)
	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", orStatus(s.status, err)),
		slog.String("handler", name),
		slog.String("outcome", orStatus(s.outcome, err)),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(append(attrs, logger.ErrAttrs(err)...), slog.String("cause", name))
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, s.extras...)...)
}

func orStatus(v string, err error) string {
	if v != "" {
		return v
	}
	return logger.Status(err)
}

// normalizeHandlerName turns "/Add Guide" into "add_guide".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
