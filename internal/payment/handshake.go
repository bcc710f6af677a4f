package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/state"
	"github.com/m3rciful/guideshop/internal/session"
	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/validate"
)

func (o *Orchestrator) isCancel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), o.cfg.CancelKeyword)
}

// HandleMessage consumes buyer messages while a transfer receipt is expected or under
// review. handled is false when the buyer is in no such step.
//
// A new receipt photo during review replaces the open handshake; the old admin prompt
// is deleted right away and its buttons go stale.
func (o *Orchestrator) HandleMessage(ctx context.Context, buyerID int64, in shop.Input) (bool, error) {
	var (
		handled    bool
		replies    []string
		superseded *shop.Handshake
		cancelled  bool
	)
	err := o.store.Update(ctx, buyerID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		replies, superseded, cancelled = nil, nil, false
		if !ok || !cur.In(session.FlowPurchase, session.StepAwaitingReceipt, session.StepAwaitingDecision) || cur.Purchase == nil {
			return cur, state.Keep, nil
		}
		handled = true

		if cur.Step == session.StepAwaitingReceipt && in.Attachment.Kind == shop.AttachNone && o.isCancel(in.Text) {
			replies = append(replies, textCancelled)
			cancelled = true
			return cur, state.Delete, nil
		}
		if cur.Step == session.StepAwaitingDecision && in.Attachment.Kind != shop.AttachPhoto {
			replies = append(replies, textUnderReview)
			return cur, state.Keep, nil
		}
		if err := validate.Receipt(in.Attachment, o.cfg.ReceiptMaxBytes); err != nil {
			msg, _ := validate.Message(err)
			replies = append(replies, msg)
			return cur, state.Keep, nil
		}

		var old *shop.Handshake
		if hs, open := cur.OpenHandshake(); open {
			cp := *hs
			old = &cp
		}
		next, opened := o.openHandshake(ctx, cur, in.Attachment)
		if !opened {
			replies = append(replies, textAdminUnreach)
			return cur, state.Keep, nil
		}
		superseded = old
		replies = append(replies, textWaitAdmin)
		return next, state.Save, nil
	})
	if err != nil {
		return handled, fmt.Errorf("payment: receipt: %w", err)
	}
	if superseded != nil {
		o.supersede(ctx, *superseded)
	}
	if cancelled {
		o.count("cancelled")
		logger.Info(ctx, component, "purchase.cancelled",
			slog.String("status", "cancelled"),
			slog.String("outcome", "cancelled"),
			slog.Int64("buyer_id", buyerID),
		)
	}
	for _, r := range replies {
		o.say(ctx, buyerID, r, nil)
	}
	return handled, nil
}

func (o *Orchestrator) reviewer(p *shop.PurchaseIntent) int64 {
	if p.AdminID != 0 {
		return p.AdminID
	}
	return o.cfg.FallbackAdminID
}

// openHandshake forwards the receipt to the reviewer. The prompt is sent while the buyer's
// session is held so a decision can never arrive for a handshake that is not stored yet.
func (o *Orchestrator) openHandshake(ctx context.Context, cur session.Session, receipt shop.Attachment) (session.Session, bool) {
	p := cur.Purchase
	adminID := o.reviewer(p)
	attrs := []slog.Attr{
		slog.Int64("buyer_id", p.BuyerID),
		slog.Int64("admin_id", adminID),
		slog.String("kind", p.Kind.String()),
		slog.String("item", p.ItemName),
	}
	if adminID == 0 {
		logger.Error(ctx, component, "handshake.open", append(attrs, slog.String("status", "fail"), slog.String("cause", "no_admin"))...)
		return cur, false
	}

	token := o.newToken()
	caption := fmt.Sprintf(textReviewCaption, p.Kind.Title(), p.ItemName, p.BuyerID)
	prompt, err := o.msg.SendPhoto(ctx, adminID, receipt.Ref, caption, decisionKeyboard(p.BuyerID, token))
	if err != nil {
		logger.Error(ctx, component, "handshake.open", append(append(attrs, slog.String("status", "fail")), logger.ErrAttrs(err)...)...)
		return cur, false
	}
	o.reap(ctx, prompt, o.cfg.PromptTTL, "decision_prompt")

	cur.Handshake = &shop.Handshake{
		Token:      token,
		BuyerID:    p.BuyerID,
		Kind:       p.Kind,
		ItemName:   p.ItemName,
		ReceiptRef: receipt.Ref,
		AdminID:    adminID,
		Prompt:     prompt,
		State:      shop.HandshakePending,
		OpenedAt:   o.now().UTC(),
	}
	cur.Step = session.StepAwaitingDecision
	logger.Info(ctx, component, "handshake.opened", append(attrs, slog.String("status", "ok"), slog.String("handshake", token))...)
	return cur, true
}

// supersede retires a handshake replaced by a newer receipt or purchase.
func (o *Orchestrator) supersede(ctx context.Context, hs shop.Handshake) {
	o.reap(ctx, hs.Prompt, 0, "superseded")
	o.reap(ctx, hs.Confirm, 0, "superseded")
	o.terminal(ctx, hs, "superseded")
}

// Decide applies an admin decision to the buyer's open handshake. A decision for a
// missing, closed, replaced or foreign handshake returns an error matching ErrStale
// and changes nothing.
func (o *Orchestrator) Decide(ctx context.Context, adminID, buyerID int64, token string, d Decision) error {
	var after []func()
	err := o.store.Update(ctx, buyerID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		after = nil
		if !ok {
			return cur, state.Keep, stale("no session")
		}
		hs, open := cur.OpenHandshake()
		switch {
		case !open:
			return cur, state.Keep, stale("no open handshake")
		case hs.Token != token:
			return cur, state.Keep, stale("token mismatch")
		case hs.AdminID != adminID:
			return cur, state.Keep, stale("foreign admin")
		}
		next := *hs

		switch d {
		case Approve, Reject:
			confirm, st := ConfirmApprove, shop.HandshakeConfirmingApprove
			if d == Reject {
				confirm, st = ConfirmReject, shop.HandshakeConfirmingReject
			}
			ref, err := o.msg.SendText(ctx, adminID, textAreYouSure, confirmKeyboard(confirm, buyerID, token))
			if err != nil {
				return cur, state.Keep, fmt.Errorf("send confirmation: %w", err)
			}
			o.reap(ctx, next.Confirm, 0, "confirm_replaced")
			o.reap(ctx, ref, o.cfg.PromptTTL, "confirm_prompt")
			next.Confirm, next.State = ref, st

		case Reconsider:
			if next.State != shop.HandshakeConfirmingApprove && next.State != shop.HandshakeConfirmingReject {
				return cur, state.Keep, stale("nothing to reconsider")
			}
			caption := fmt.Sprintf(textReviewCaption, next.Kind.Title(), next.ItemName, next.BuyerID)
			ref, err := o.msg.SendPhoto(ctx, adminID, next.ReceiptRef, caption, decisionKeyboard(buyerID, token))
			if err != nil {
				return cur, state.Keep, fmt.Errorf("resend decision prompt: %w", err)
			}
			o.reap(ctx, ref, o.cfg.PromptTTL, "decision_prompt")
			next.Prompt, next.Confirm, next.State = ref, shop.MessageRef{}, shop.HandshakePending

		case ConfirmApprove:
			if next.State != shop.HandshakeConfirmingApprove {
				return cur, state.Keep, stale("approve not confirming")
			}
			next.State = shop.HandshakeReleased
			after = append(after, func() { o.release(ctx, next) })
			return cur, state.Delete, nil

		case ConfirmReject:
			if next.State != shop.HandshakeConfirmingReject {
				return cur, state.Keep, stale("reject not confirming")
			}
			next.State = shop.HandshakeRejected
			after = append(after, func() { o.reject(ctx, next) })
			return cur, state.Delete, nil

		default:
			return cur, state.Keep, fmt.Errorf("unknown decision %q", d)
		}

		cur.Handshake = &next
		return cur, state.Save, nil
	})

	attrs := []slog.Attr{
		slog.String("action", string(d)),
		slog.Int64("buyer_id", buyerID),
		slog.Int64("admin_id", adminID),
		slog.String("handshake", token),
	}
	if errors.Is(err, ErrStale) {
		logger.Info(ctx, component, "handshake.decision", append(append(attrs, slog.String("status", "stale")), logger.ErrAttrs(err)...)...)
		return err
	}
	if err != nil {
		logger.Error(ctx, component, "handshake.decision", append(append(attrs, slog.String("status", "fail")), logger.ErrAttrs(err)...)...)
		return fmt.Errorf("payment: decide: %w", err)
	}
	logger.Info(ctx, component, "handshake.decision", append(attrs, slog.String("status", "ok"))...)
	for _, fn := range after {
		fn()
	}
	return nil
}

// release delivers the item after an approved receipt. There is no automatic retry.
func (o *Orchestrator) release(ctx context.Context, hs shop.Handshake) {
	o.reap(ctx, o.say(ctx, hs.AdminID, textSending(hs.Kind), nil), o.cfg.PromptTTL, "admin_notice")
	if err := o.deliver(ctx, hs.BuyerID, hs.Kind, hs.ItemName); err != nil {
		o.say(ctx, hs.BuyerID, textDeliveryFailBuyer(hs.Kind), nil)
		o.reap(ctx, o.say(ctx, hs.AdminID, fmt.Sprintf(textDeliveryFailAdm, hs.Kind.Title()), nil), o.cfg.PromptTTL, "admin_notice")
		o.count("delivery_failed")
	} else {
		o.count("delivered")
	}
	o.terminal(ctx, hs, "released")
}

func (o *Orchestrator) reject(ctx context.Context, hs shop.Handshake) {
	o.reap(ctx, o.say(ctx, hs.AdminID, textRejectedAdmin, nil), o.cfg.PromptTTL, "admin_notice")
	o.say(ctx, hs.BuyerID, textRejectedBuyer, nil)
	o.terminal(ctx, hs, "rejected")
}

func (o *Orchestrator) reap(ctx context.Context, ref shop.MessageRef, delay time.Duration, reason string) {
	if ref.IsZero() || o.reaper == nil {
		return
	}
	o.reaper.Schedule(ctx, ref, delay, reason)
}
