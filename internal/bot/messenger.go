package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/keyboard"
	"github.com/m3rciful/guideshop/core/telegram/middleware"
	"github.com/m3rciful/guideshop/core/telegram/sender"
	"github.com/m3rciful/guideshop/internal/shop"

	tele "gopkg.in/telebot.v4"
)

// starsCurrency is the Telegram Stars currency code.
const starsCurrency = "XTR"

// API is the part of *tele.Bot the Messenger uses.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Raw(method string, payload interface{}) ([]byte, error)
}

// Messenger implements shop.Messenger on top of the Bot API. Calls run
// through the dispatcher's synchronous path so they get its retries and logs.
type Messenger struct {
	api  API
	disp *sender.Dispatcher
}

// NewMessenger builds a Messenger. A nil dispatcher calls the API directly.
func NewMessenger(api API, disp *sender.Dispatcher) *Messenger {
	return &Messenger{api: api, disp: disp}
}

func (m *Messenger) do(ctx context.Context, action, endpoint string, run func() error) error {
	if m.disp == nil {
		return run()
	}
	return m.disp.Do(ctx, action, endpoint, run)
}

// send builds the payload on every attempt so reader-backed files are fresh on retry.
func (m *Messenger) send(ctx context.Context, action, endpoint string, chatID int64, build func() interface{}, kb *shop.Keyboard) (shop.MessageRef, error) {
	var sent *tele.Message
	err := m.do(ctx, action, endpoint, func() error {
		var opts []interface{}
		if rm := Markup(kb); rm != nil {
			opts = append(opts, rm)
		}
		msg, err := m.api.Send(tele.ChatID(chatID), build(), opts...)
		if err == nil {
			sent = msg
		}
		return err
	})
	if err != nil {
		return shop.MessageRef{}, err
	}
	middleware.CountSend(ctx, kb != nil)
	return ref(sent, chatID), nil
}

func ref(msg *tele.Message, chatID int64) shop.MessageRef {
	if msg == nil {
		return shop.MessageRef{}
	}
	r := shop.MessageRef{ChatID: chatID, MessageID: msg.ID}
	if msg.Chat != nil {
		r.ChatID = msg.Chat.ID
	}
	return r
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, kb *shop.Keyboard) (shop.MessageRef, error) {
	return m.send(ctx, "send.text", "sendMessage", chatID, func() interface{} { return text }, kb)
}

func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb *shop.Keyboard) (shop.MessageRef, error) {
	return m.send(ctx, "send.photo", "sendPhoto", chatID, func() interface{} {
		return &tele.Photo{File: tele.File{FileID: photoRef}, Caption: caption}
	}, kb)
}

func (m *Messenger) SendDocument(ctx context.Context, chatID int64, fileRef, fileName, caption string) (shop.MessageRef, error) {
	return m.send(ctx, "send.document", "sendDocument", chatID, func() interface{} {
		return &tele.Document{File: tele.File{FileID: fileRef}, FileName: fileName, Caption: caption}
	}, nil)
}

// SendFile uploads body as a new document.
func (m *Messenger) SendFile(ctx context.Context, chatID int64, fileName string, body []byte, caption string) error {
	_, err := m.send(ctx, "send.file", "sendDocument", chatID, func() interface{} {
		return &tele.Document{File: tele.FromReader(bytes.NewReader(body)), FileName: fileName, Caption: caption}
	}, nil)
	return err
}

func (m *Messenger) SendInvoice(ctx context.Context, chatID int64, inv shop.Invoice) error {
	_, err := m.send(ctx, "send.invoice", "sendInvoice", chatID, func() interface{} {
		return &tele.Invoice{
			Title:       inv.Title,
			Description: inv.Description,
			Payload:     inv.Payload,
			Currency:    starsCurrency,
			Prices:      []tele.Price{{Label: inv.Label, Amount: inv.Amount}},
		}
	}, nil)
	return err
}

// Notify queues text for chatID and returns without waiting for delivery.
// A full or closed queue degrades to a direct send.
func (m *Messenger) Notify(ctx context.Context, chatID int64, text string) error {
	run := func() error {
		_, err := m.api.Send(tele.ChatID(chatID), text)
		return err
	}
	if m.disp == nil {
		return run()
	}
	err := m.disp.Enqueue(ctx, "notify", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			append([]slog.Attr{slog.String("action", "notify")}, logger.ErrAttrs(err)...)...)
		return run()
	}
	return err
}

// Delete treats an already deleted message as success.
func (m *Messenger) Delete(ctx context.Context, r shop.MessageRef) error {
	return m.do(ctx, "delete", "deleteMessage", func() error {
		err := m.api.Delete(tele.StoredMessage{MessageID: strconv.Itoa(r.MessageID), ChatID: r.ChatID})
		if errors.Is(err, tele.ErrNotFoundToDelete) {
			return nil
		}
		return err
	})
}

func (m *Messenger) Refund(ctx context.Context, userID int64, chargeID string) error {
	if chargeID == "" {
		return fmt.Errorf("refund: empty charge id")
	}
	return m.do(ctx, "refund", "refundStarPayment", func() error {
		_, err := m.api.Raw("refundStarPayment", map[string]string{
			"user_id":                    strconv.FormatInt(userID, 10),
			"telegram_payment_charge_id": chargeID,
		})
		return err
	})
}

// Markup converts a port keyboard to telebot markup. Inline wins over Reply.
func Markup(kb *shop.Keyboard) *tele.ReplyMarkup {
	switch {
	case kb == nil:
		return nil
	case len(kb.Inline) > 0:
		rows := make([][]keyboard.Button, 0, len(kb.Inline))
		for _, row := range kb.Inline {
			btns := make([]keyboard.Button, 0, len(row))
			for _, b := range row {
				btns = append(btns, keyboard.Button(b))
			}
			rows = append(rows, btns)
		}
		return keyboard.Inline(rows...)
	case len(kb.Reply) > 0:
		return keyboard.Reply(kb.Reply...)
	case kb.Remove:
		return keyboard.Remove()
	}
	return nil
}
