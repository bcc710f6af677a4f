package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/internal/shop"
)

// RemoveMenu lists items of kind as buttons that delete them.
func (w *Workflow) RemoveMenu(ctx context.Context, adminID int64, kind shop.Kind) error {
	items, err := w.catalog.List(ctx, kind)
	if err != nil {
		w.flush(ctx, adminID, outbox{textLookupFailed})
		return fmt.Errorf("submission: list %s: %w", kind, err)
	}
	if len(items) == 0 {
		w.flush(ctx, adminID, outbox{textNothing})
		return nil
	}
	kb := &shop.Keyboard{}
	for _, it := range items {
		kb.Inline = append(kb.Inline, []shop.Button{{Text: "❌ " + it.Name, Unique: kind.RemoveUnique(), Data: it.Name}})
	}
	if _, err := w.msg.SendText(ctx, adminID, removeMenu(kind), kb); err != nil {
		return fmt.Errorf("submission: send remove menu: %w", err)
	}
	return nil
}

// Remove deletes the named item from the catalog.
func (w *Workflow) Remove(ctx context.Context, adminID int64, kind shop.Kind, name string) error {
	err := w.catalog.Delete(ctx, kind, name)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("kind", kind.String()),
		slog.String("item", name),
	}
	switch {
	case errors.Is(err, shop.ErrNotFound):
		logger.Info(ctx, component, "catalog.remove", append(attrs, slog.String("outcome", "rejected"))...)
		w.flush(ctx, adminID, outbox{textRemoveGone})
		return nil
	case err != nil:
		logger.Error(ctx, component, "catalog.remove", append(attrs, logger.ErrAttrs(err)...)...)
		w.flush(ctx, adminID, outbox{textRemoveFailed})
		return fmt.Errorf("submission: remove %s %q: %w", kind, name, err)
	}
	logger.Info(ctx, component, "catalog.remove", append(attrs, slog.String("outcome", "ok"))...)
	w.flush(ctx, adminID, outbox{fmt.Sprintf(textRemoved, name)})
	return nil
}
