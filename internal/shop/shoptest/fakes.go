// Package shoptest provides recording fakes of the shop ports.
package shoptest

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/guideshop/internal/shop"
)

// Sent is one recorded outbound call.
type Sent struct {
	Op       string // text, photo, document, invoice
	ChatID   int64
	Text     string
	Ref      string
	FileName string
	Keyboard *shop.Keyboard
	Invoice  shop.Invoice
	Msg      shop.MessageRef
}

// Messenger records every call. Fail* hooks inject errors per operation.
type Messenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []Sent
	deleted []shop.MessageRef
	refunds []string

	FailText     func(chatID int64) error
	FailPhoto    func(chatID int64) error
	FailDocument func(chatID int64, ref string) error
	FailRefund   error
}

func (m *Messenger) record(s Sent) shop.MessageRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.Msg = shop.MessageRef{ChatID: s.ChatID, MessageID: m.nextID}
	m.sent = append(m.sent, s)
	return s.Msg
}

func (m *Messenger) SendText(_ context.Context, chatID int64, text string, kb *shop.Keyboard) (shop.MessageRef, error) {
	if m.FailText != nil {
		if err := m.FailText(chatID); err != nil {
			return shop.MessageRef{}, err
		}
	}
	return m.record(Sent{Op: "text", ChatID: chatID, Text: text, Keyboard: kb}), nil
}

func (m *Messenger) SendPhoto(_ context.Context, chatID int64, ref, caption string, kb *shop.Keyboard) (shop.MessageRef, error) {
	if m.FailPhoto != nil {
		if err := m.FailPhoto(chatID); err != nil {
			return shop.MessageRef{}, err
		}
	}
	return m.record(Sent{Op: "photo", ChatID: chatID, Ref: ref, Text: caption, Keyboard: kb}), nil
}

func (m *Messenger) SendDocument(_ context.Context, chatID int64, ref, fileName, caption string) (shop.MessageRef, error) {
	if m.FailDocument != nil {
		if err := m.FailDocument(chatID, ref); err != nil {
			return shop.MessageRef{}, err
		}
	}
	return m.record(Sent{Op: "document", ChatID: chatID, Ref: ref, FileName: fileName, Text: caption}), nil
}

func (m *Messenger) SendInvoice(_ context.Context, chatID int64, inv shop.Invoice) error {
	m.record(Sent{Op: "invoice", ChatID: chatID, Invoice: inv})
	return nil
}

func (m *Messenger) Delete(_ context.Context, ref shop.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *Messenger) Refund(_ context.Context, _ int64, chargeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds = append(m.refunds, chargeID)
	return m.FailRefund
}

// Sent returns all recorded sends.
func (m *Messenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// To returns the sends addressed to chatID.
func (m *Messenger) To(chatID int64) []Sent {
	var out []Sent
	for _, s := range m.Sent() {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the latest send to chatID.
func (m *Messenger) Last(chatID int64) (Sent, bool) {
	sent := m.To(chatID)
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// Ops lists operation names sent to chatID in order.
func (m *Messenger) Ops(chatID int64) []string {
	var out []string
	for _, s := range m.To(chatID) {
		out = append(out, s.Op)
	}
	return out
}

func (m *Messenger) Deleted() []shop.MessageRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shop.MessageRef(nil), m.deleted...)
}

func (m *Messenger) Refunds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.refunds...)
}

// Reset forgets recorded calls.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent, m.deleted, m.refunds = nil, nil, nil
}

// Catalog wraps another catalog, counting calls and injecting errors.
type Catalog struct {
	shop.Catalog

	mu      sync.Mutex
	finds   int
	creates []shop.Item

	FindErr   error
	CreateErr error
}

func (c *Catalog) FindByName(ctx context.Context, kind shop.Kind, name string) (shop.Item, error) {
	c.mu.Lock()
	c.finds++
	err := c.FindErr
	c.mu.Unlock()
	if err != nil {
		return shop.Item{}, err
	}
	return c.Catalog.FindByName(ctx, kind, name)
}

func (c *Catalog) Create(ctx context.Context, item shop.Item) (int64, error) {
	c.mu.Lock()
	c.creates = append(c.creates, item)
	err := c.CreateErr
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return c.Catalog.Create(ctx, item)
}

func (c *Catalog) Finds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finds
}

func (c *Catalog) Creates() []shop.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shop.Item(nil), c.creates...)
}

// Scheduler records reaper requests.
type Scheduler struct {
	mu   sync.Mutex
	jobs []Job
}

// Job is one scheduled deletion.
type Job struct {
	Ref    shop.MessageRef
	Delay  time.Duration
	Reason string
}

func (s *Scheduler) Schedule(_ context.Context, ref shop.MessageRef, delay time.Duration, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Ref: ref, Delay: delay, Reason: reason})
}

func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}
