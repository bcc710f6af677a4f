// Package payment runs item selection, Stars payment and the manual transfer
// receipt handshake between buyer and administrator.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/callbacks"
	"github.com/m3rciful/guideshop/core/telegram/state"
	"github.com/m3rciful/guideshop/internal/reaper"
	"github.com/m3rciful/guideshop/internal/session"
	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/validate"
)

const component = "payment"

// Scheduler defers message deletion.
type Scheduler interface {
	Schedule(ctx context.Context, ref shop.MessageRef, delay time.Duration, reason string)
}

// Config holds payment settings.
type Config struct {
	// ReviewAdminID is recorded on each purchase as the receipt reviewer.
	ReviewAdminID int64
	// FallbackAdminID reviews receipts for sessions that carry no reviewer.
	FallbackAdminID int64
	TransferPhone   string
	ReceiptMaxBytes int64
	PromptTTL       time.Duration
	CancelKeyword   string
}

func (c Config) withDefaults() Config {
	if c.PromptTTL <= 0 {
		c.PromptTTL = reaper.DefaultDelay
	}
	if c.ReceiptMaxBytes <= 0 {
		c.ReceiptMaxBytes = 5 * validate.MiB
	}
	if strings.TrimSpace(c.CancelKeyword) == "" {
		c.CancelKeyword = "стоп"
	}
	return c
}

// Buyer identifies the person browsing.
type Buyer struct {
	ID       int64
	Username string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithTokens replaces the handshake token generator.
func WithTokens(gen func() string) Option { return func(o *Orchestrator) { o.newToken = gen } }

// WithTerminalHook observes every handshake that reaches a terminal state.
func WithTerminalHook(fn func(ctx context.Context, hs shop.Handshake)) Option {
	return func(o *Orchestrator) { o.onTerminal = fn }
}

// Orchestrator drives the buyer side of a purchase and the admin decisions on receipts.
type Orchestrator struct {
	store   session.Store
	catalog shop.Catalog
	views   shop.ViewLog
	msg     shop.Messenger
	reaper  Scheduler
	cfg     Config

	now        func() time.Time
	newToken   func() string
	onTerminal func(ctx context.Context, hs shop.Handshake)

	mu       sync.Mutex
	outcomes map[string]int64
}

// New returns an Orchestrator. views may be nil.
func New(store session.Store, catalog shop.Catalog, views shop.ViewLog, msg shop.Messenger, sched Scheduler, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		catalog:  catalog,
		views:    views,
		msg:      msg,
		reaper:   sched,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		newToken: newToken,
		outcomes: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Outcomes returns counters of terminal purchase outcomes.
func (o *Orchestrator) Outcomes() map[string]int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]int64, len(o.outcomes))
	for k, v := range o.outcomes {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) count(outcome string) {
	o.mu.Lock()
	o.outcomes[outcome]++
	o.mu.Unlock()
}

func (o *Orchestrator) terminal(ctx context.Context, hs shop.Handshake, outcome string) {
	o.count(outcome)
	logger.Info(ctx, component, "handshake.closed",
		slog.String("status", "ok"),
		slog.String("outcome", outcome),
		slog.String("handshake", hs.Token),
		slog.String("state", string(hs.State)),
		slog.Int64("buyer_id", hs.BuyerID),
		slog.Int64("admin_id", hs.AdminID),
		slog.String("kind", hs.Kind.String()),
		slog.String("item", hs.ItemName),
	)
	if o.onTerminal != nil {
		o.onTerminal(ctx, hs)
	}
}

// say sends text and logs a failure. Used for replies whose loss only costs the user a hint.
func (o *Orchestrator) say(ctx context.Context, chatID int64, text string, kb *shop.Keyboard) shop.MessageRef {
	ref, err := o.msg.SendText(ctx, chatID, text, kb)
	if err != nil {
		logger.Warn(ctx, component, "reply.send",
			append([]slog.Attr{slog.String("status", "fail"), slog.Int64("chat_id", chatID)}, logger.ErrAttrs(err)...)...)
	}
	return ref
}

// Browse lists items of kind with a select button each.
func (o *Orchestrator) Browse(ctx context.Context, buyerID int64, kind shop.Kind) error {
	items, err := o.catalog.List(ctx, kind)
	if err != nil {
		o.say(ctx, buyerID, textTryLater, nil)
		return fmt.Errorf("payment: list %s: %w", kind, err)
	}
	if len(items) == 0 {
		o.say(ctx, buyerID, textEmpty(kind), nil)
		return nil
	}
	kb := &shop.Keyboard{}
	for _, it := range items {
		if !callbacks.Fits(kind.SelectUnique(), it.Name) {
			logger.Warn(ctx, component, "catalog.list",
				slog.String("status", "skip"),
				slog.String("cause", "name_too_long"),
				slog.String("item", it.Name),
			)
			continue
		}
		kb.Inline = append(kb.Inline, []shop.Button{{Text: it.Name, Unique: kind.SelectUnique(), Data: it.Name}})
	}
	if len(kb.Inline) == 0 {
		o.say(ctx, buyerID, textEmpty(kind), nil)
		return nil
	}
	if _, err := o.msg.SendText(ctx, buyerID, textList(kind), kb); err != nil {
		return fmt.Errorf("payment: send list: %w", err)
	}
	return nil
}

// Select records the buyer's choice and presents the item with both payment options.
// Any previous session of the buyer is replaced.
func (o *Orchestrator) Select(ctx context.Context, buyer Buyer, kind shop.Kind, name string) error {
	item, err := o.catalog.FindByName(ctx, kind, name)
	if errors.Is(err, shop.ErrNotFound) {
		o.say(ctx, buyer.ID, textItemGone, nil)
		return nil
	}
	if err != nil {
		o.say(ctx, buyer.ID, textTryLater, nil)
		return fmt.Errorf("payment: find %s %q: %w", kind, name, err)
	}

	o.recordView(ctx, buyer, item)

	var superseded *shop.Handshake
	err = o.store.Update(ctx, buyer.ID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		if ok {
			if hs, open := cur.OpenHandshake(); open {
				cp := *hs
				superseded = &cp
			}
		}
		next := session.NewPurchase(buyer.ID, kind, item.Name, o.now().UTC())
		next.Purchase.AdminID = o.cfg.ReviewAdminID
		return next, state.Save, nil
	})
	if err != nil {
		return fmt.Errorf("payment: select: %w", err)
	}
	if superseded != nil {
		o.supersede(ctx, *superseded)
	}

	logger.Info(ctx, component, "purchase.selected",
		slog.String("status", "ok"),
		slog.String("kind", kind.String()),
		slog.String("item", item.Name),
		slog.Int64("buyer_id", buyer.ID),
	)

	if _, err := o.msg.SendPhoto(ctx, buyer.ID, item.PhotoRef, "", nil); err != nil {
		logger.Warn(ctx, component, "item.photo",
			append([]slog.Attr{slog.String("status", "fail"), slog.String("item", item.Name)}, logger.ErrAttrs(err)...)...)
	}
	if _, err := o.msg.SendText(ctx, buyer.ID, textDetails(item), payKeyboard()); err != nil {
		return fmt.Errorf("payment: send details: %w", err)
	}
	return nil
}

func (o *Orchestrator) recordView(ctx context.Context, buyer Buyer, item shop.Item) {
	if o.views == nil {
		return
	}
	err := o.views.RecordView(ctx, shop.View{
		BuyerID:  buyer.ID,
		Username: buyer.Username,
		Kind:     item.Kind,
		ItemName: item.Name,
		ViewedAt: o.now().UTC(),
	})
	if err != nil {
		logger.Warn(ctx, component, "view.record",
			append([]slog.Attr{slog.String("status", "fail"), slog.String("item", item.Name)}, logger.ErrAttrs(err)...)...)
	}
}

// purchase loads the buyer's selection; ok is false when there is none.
func (o *Orchestrator) purchase(cur session.Session, present bool) (*shop.PurchaseIntent, bool) {
	if !present || cur.Flow != session.FlowPurchase || cur.Purchase == nil {
		return nil, false
	}
	return cur.Purchase, true
}

// ChooseStars issues an invoice in the platform currency for the selected item.
func (o *Orchestrator) ChooseStars(ctx context.Context, buyerID int64) error {
	var (
		item  shop.Item
		reply string
	)
	err := o.store.Update(ctx, buyerID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		p, ok := o.purchase(cur, ok)
		if !ok {
			reply = textPickFirst
			return cur, state.Keep, nil
		}
		if _, open := cur.OpenHandshake(); open {
			reply = textUnderReview
			return cur, state.Keep, nil
		}
		it, err := o.catalog.FindByName(ctx, p.Kind, p.ItemName)
		if errors.Is(err, shop.ErrNotFound) {
			reply = textItemGone
			return cur, state.Delete, nil
		}
		if err != nil {
			return cur, state.Keep, err
		}
		if it.PriceStars <= 0 {
			reply = textStarsOff
			return cur, state.Keep, nil
		}
		item = it
		cp := *p
		cp.Method = shop.MethodStars
		cur.Purchase = &cp
		cur.Step = session.StepStarsInvoiced
		return cur, state.Save, nil
	})
	if err != nil {
		o.say(ctx, buyerID, textTryLater, nil)
		return fmt.Errorf("payment: choose stars: %w", err)
	}
	if reply != "" {
		o.say(ctx, buyerID, reply, nil)
		return nil
	}

	inv := shop.Invoice{
		Title:       item.Name,
		Description: item.Description,
		Payload:     shop.InvoicePayload(item.Kind, item.Name),
		Label:       "XTR",
		Amount:      item.PriceStars,
	}
	if err := o.msg.SendInvoice(ctx, buyerID, inv); err != nil {
		return fmt.Errorf("payment: send invoice: %w", err)
	}
	logger.Info(ctx, component, "invoice.sent",
		slog.String("status", "ok"),
		slog.String("kind", item.Kind.String()),
		slog.String("item", item.Name),
		slog.Int("amount", item.PriceStars),
	)
	return nil
}

// PreCheckout approves every pre-checkout query. The platform does its own checks.
func (o *Orchestrator) PreCheckout(ctx context.Context, buyerID int64, payload string) bool {
	logger.Info(ctx, component, "invoice.precheckout",
		slog.String("status", "ok"),
		slog.Int64("buyer_id", buyerID),
		slog.String("payload", logger.SanitizeLimit(payload, 64)),
	)
	return true
}

// Paid delivers the file after a successful Stars payment, clears the purchase and
// refunds the charge. Delivery does not depend on the refund. A receipt still under
// review is closed as superseded.
func (o *Orchestrator) Paid(ctx context.Context, buyerID int64, payload, chargeID string) error {
	kind, name, perr := shop.ParseInvoicePayload(payload)
	if perr != nil {
		if cur, ok, err := o.store.Get(ctx, buyerID); err == nil {
			if p, ok := o.purchase(cur, ok); ok {
				kind, name, perr = p.Kind, p.ItemName, nil
			}
		}
	}

	var deliverErr error
	if perr != nil {
		deliverErr = perr
	} else {
		deliverErr = o.deliver(ctx, buyerID, kind, name)
	}
	if deliverErr != nil {
		o.say(ctx, buyerID, textDeliveryFailBuyer(kind), nil)
		o.count("delivery_failed")
	} else {
		o.count("delivered")
	}

	var superseded *shop.Handshake
	clearErr := o.store.Update(ctx, buyerID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		superseded = nil
		if !ok || cur.Flow != session.FlowPurchase {
			return cur, state.Keep, nil
		}
		if hs, open := cur.OpenHandshake(); open {
			cp := *hs
			superseded = &cp
		}
		return cur, state.Delete, nil
	})
	if clearErr != nil {
		logger.Warn(ctx, component, "session.clear",
			append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(clearErr)...)...)
	}
	if superseded != nil {
		o.supersede(ctx, *superseded)
	}

	refundErr := o.msg.Refund(ctx, buyerID, chargeID)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(refundErr)),
		slog.Int64("buyer_id", buyerID),
		slog.String("kind", kind.String()),
		slog.String("item", name),
	}
	if refundErr != nil {
		logger.Error(ctx, component, "stars.refund", append(attrs, logger.ErrAttrs(refundErr)...)...)
	} else {
		logger.Info(ctx, component, "stars.refund", attrs...)
	}
	return nil
}

// deliver sends the item file. Failures are logged with what a manual follow-up needs.
func (o *Orchestrator) deliver(ctx context.Context, buyerID int64, kind shop.Kind, name string) error {
	item, err := o.catalog.FindByName(ctx, kind, name)
	fileRef := ""
	if err == nil {
		fileRef = item.FileRef
		_, err = o.msg.SendDocument(ctx, buyerID, item.FileRef, item.FileName, textDeliveryCaption(kind, name))
	}
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("buyer_id", buyerID),
		slog.String("kind", kind.String()),
		slog.String("item", name),
	}
	if err != nil {
		attrs = append(attrs, slog.String("file_ref", fileRef))
		logger.Error(ctx, component, "item.deliver", append(attrs, logger.ErrAttrs(err)...)...)
		return fmt.Errorf("payment: deliver %s %q: %w", kind, name, err)
	}
	logger.Info(ctx, component, "item.deliver", attrs...)
	return nil
}

// ChooseTransfer switches the purchase to manual transfer and asks for a receipt.
func (o *Orchestrator) ChooseTransfer(ctx context.Context, buyerID int64) error {
	var (
		kind  shop.Kind
		reply string
	)
	err := o.store.Update(ctx, buyerID, func(cur session.Session, ok bool) (session.Session, state.Action, error) {
		p, ok := o.purchase(cur, ok)
		if !ok {
			reply = textPickFirst
			return cur, state.Keep, nil
		}
		if _, open := cur.OpenHandshake(); open {
			reply = textUnderReview
			return cur, state.Keep, nil
		}
		cp := *p
		cp.Method = shop.MethodTransfer
		cur.Purchase = &cp
		cur.Step = session.StepAwaitingReceipt
		kind = cp.Kind
		return cur, state.Save, nil
	})
	if err != nil {
		o.say(ctx, buyerID, textTryLater, nil)
		return fmt.Errorf("payment: choose transfer: %w", err)
	}
	if reply != "" {
		o.say(ctx, buyerID, reply, nil)
		return nil
	}
	o.say(ctx, buyerID, textTransfer(kind, o.cfg.TransferPhone), nil)
	o.say(ctx, buyerID, fmt.Sprintf(textSendReceipt, o.cfg.CancelKeyword), nil)
	return nil
}

// Expire logs a purchase session dropped by TTL. It is meant as the session store evict hook.
func (o *Orchestrator) Expire(ctx context.Context, buyerID int64, s session.Session) {
	hs, ok := s.OpenHandshake()
	if !ok {
		return
	}
	cp := *hs
	cp.State = shop.HandshakeExpired
	o.terminal(ctx, cp, "expired")
}
