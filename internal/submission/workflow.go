// Package submission drives an administrator through adding a catalog item.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/state"
	"github.com/m3rciful/guideshop/internal/session"
	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/validate"
)

const component = "submission"

// Config holds field limits.
type Config struct {
	PhotoMaxBytes int64
	FileMaxBytes  int64
	PriceMin      int
	PriceMax      int
}

// DefaultConfig mirrors the shop defaults.
func DefaultConfig() Config {
	return Config{
		PhotoMaxBytes: 5 * validate.MiB,
		FileMaxBytes:  20 * validate.MiB,
		PriceMin:      0,
		PriceMax:      100000,
	}
}

// Workflow runs the Name, Photo, Description, File, PriceMinor, PriceStars dialogue.
type Workflow struct {
	store   session.Store
	catalog shop.Catalog
	msg     shop.Messenger
	cfg     Config
	now     func() time.Time
}

// New returns a Workflow.
func New(store session.Store, catalog shop.Catalog, msg shop.Messenger, cfg Config) *Workflow {
	return &Workflow{store: store, catalog: catalog, msg: msg, cfg: cfg, now: time.Now}
}

// outbox collects replies while the session is held and sends them after the write.
type outbox []string

func (o *outbox) add(text string) { *o = append(*o, text) }

func (w *Workflow) flush(ctx context.Context, chatID int64, out outbox) {
	for _, text := range out {
		if _, err := w.msg.SendText(ctx, chatID, text, nil); err != nil {
			logger.Warn(ctx, component, "reply.send",
				append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
		}
	}
}

// Start replaces any session of admin with a fresh submission of kind.
func (w *Workflow) Start(ctx context.Context, adminID int64, kind shop.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("submission: invalid kind %d", kind)
	}
	err := w.store.Update(ctx, adminID, func(session.Session, bool) (session.Session, state.Action, error) {
		return session.NewSubmission(adminID, kind, w.now().UTC()), state.Save, nil
	})
	if err != nil {
		return fmt.Errorf("submission: start: %w", err)
	}
	logger.Info(ctx, component, "submission.start",
		slog.String("status", "ok"),
		slog.String("kind", kind.String()),
		slog.String("step", string(session.StepName)),
	)
	w.flush(ctx, adminID, outbox{promptName(kind)})
	return nil
}

// Handle applies one inbound message. handled is false when admin has no submission in progress.
func (w *Workflow) Handle(ctx context.Context, adminID int64, in shop.Input) (handled bool, err error) {
	var (
		out  outbox
		from session.Step
		to   session.Step
		kind shop.Kind
	)
	err = w.store.Update(ctx, adminID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		if !ok || !cur.In(session.FlowSubmission) {
			return cur, state.Keep, nil
		}
		handled = true
		from, kind = cur.Step, cur.Kind
		// copy so a rejected step leaves the stored value untouched
		pending := shop.PendingItem{}
		if cur.Pending != nil {
			pending = *cur.Pending
		}
		cur.Pending = &pending
		next, action := w.step(ctx, cur, in, &out)
		to = next.Step
		if action == state.Delete {
			to = ""
		}
		return next, action, nil
	})
	if err != nil {
		return handled, fmt.Errorf("submission: update session: %w", err)
	}
	if !handled {
		return false, nil
	}
	logger.Debug(ctx, component, "submission.step",
		slog.String("kind", kind.String()),
		slog.String("step", string(from)),
		slog.String("state", string(to)),
		slog.Bool("advanced", from != to),
	)
	w.flush(ctx, adminID, out)
	return true, nil
}

// step returns the next session and what to do with it. Rejections keep the session as is.
func (w *Workflow) step(ctx context.Context, s session.Session, in shop.Input, out *outbox) (session.Session, state.Action) {
	p := s.Pending
	reject := func(err error) (session.Session, state.Action) {
		if msg, ok := validate.Message(err); ok {
			out.add(msg)
		}
		logger.Debug(ctx, component, "submission.rejected",
			slog.String("status", "skip"),
			slog.String("step", string(s.Step)),
			slog.String("err_code", validationCode(err)),
		)
		return s, state.Keep
	}

	switch s.Step {
	case session.StepName:
		name, err := validate.Name(in.Text)
		if err != nil {
			return reject(err)
		}
		_, err = w.catalog.FindByName(ctx, s.Kind, name)
		switch {
		case err == nil:
			out.add(nameTaken(name))
			return s, state.Keep
		case !errors.Is(err, shop.ErrNotFound):
			logger.Error(ctx, component, "catalog.lookup",
				append([]slog.Attr{slog.String("status", "fail"), slog.String("item", name)}, logger.ErrAttrs(err)...)...)
			out.add(textLookupFailed)
			return s, state.Keep
		}
		p.Name = name
		s.Step = session.StepPhoto
		out.add(promptPhoto(s.Kind, w.cfg.PhotoMaxBytes))

	case session.StepPhoto:
		if err := validate.Photo(in.Attachment, w.cfg.PhotoMaxBytes); err != nil {
			return reject(err)
		}
		p.PhotoRef = in.Attachment.Ref
		s.Step = session.StepDescription
		out.add(promptDescription(s.Kind, in.Attachment.Size))

	case session.StepDescription:
		desc, err := validate.Description(in.Text)
		if err != nil {
			return reject(err)
		}
		p.Description = desc
		s.Step = session.StepFile
		out.add(promptFile(s.Kind, w.cfg.FileMaxBytes))

	case session.StepFile:
		if err := validate.Document(in.Attachment, w.cfg.FileMaxBytes); err != nil {
			return reject(err)
		}
		p.FileRef = in.Attachment.Ref
		p.FileName = in.Attachment.FileName
		s.Step = session.StepPriceMinor
		out.add(promptPriceMinor(in.Attachment))

	case session.StepPriceMinor:
		price, err := validate.Price(in.Text, w.cfg.PriceMin, w.cfg.PriceMax, "рублях")
		if err != nil {
			return reject(err)
		}
		p.PriceMinor = &price
		s.Step = session.StepPriceStars
		out.add(promptPriceStars(s.Kind, price))

	case session.StepPriceStars:
		stars, err := validate.Price(in.Text, w.cfg.PriceMin, w.cfg.PriceMax, "звёздах")
		if err != nil {
			return reject(err)
		}
		p.PriceStars = &stars
		w.finish(ctx, s, out)
		return s, state.Delete

	default:
		logger.Warn(ctx, component, "submission.unknown_step",
			slog.String("status", "fail"),
			slog.String("step", string(s.Step)),
		)
		return s, state.Delete
	}
	return s, state.Save
}

// finish persists the item. The session is discarded whatever happens here.
func (w *Workflow) finish(ctx context.Context, s session.Session, out *outbox) {
	if missing := s.Pending.Missing(); len(missing) > 0 {
		fields, _ := logger.SummarizeStrings(missing, 6)
		logger.Error(ctx, component, "submission.incomplete",
			slog.String("status", "fail"),
			slog.String("kind", s.Kind.String()),
			slog.String("cause", fields),
		)
		out.add(missingFields(missing))
		return
	}

	item := s.Pending.Item(s.Kind)
	start := time.Now()
	_, err := w.catalog.Create(ctx, item)
	attrs := []slog.Attr{
		slog.String("kind", s.Kind.String()),
		slog.String("item", item.Name),
		slog.Duration("duration", logger.Took(start)),
	}
	switch {
	case errors.Is(err, shop.ErrConflict):
		logger.Warn(ctx, component, "submission.done", append(attrs, slog.String("status", "fail"), slog.String("outcome", "rejected"), slog.String("err_code", "conflict"))...)
		out.add(textConflict)
	case err != nil:
		logger.Error(ctx, component, "submission.done", append(append(attrs, slog.String("status", "fail"), slog.String("outcome", "fail")), logger.ErrAttrs(err)...)...)
		out.add(textCreateFailed)
	default:
		logger.Info(ctx, component, "submission.done", append(attrs, slog.String("status", "ok"), slog.String("outcome", "ok"))...)
		out.add(summary(item))
	}
}

func validationCode(err error) string {
	var ve *validate.Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return logger.ErrCode(err)
}
