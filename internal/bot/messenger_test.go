package bot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guideshop/core/telegram/sender"
	"github.com/m3rciful/guideshop/internal/shop"
)

type call struct {
	to   string
	what interface{}
	opts []interface{}
}

type fakeAPI struct {
	sends   []call
	deletes []tele.Editable
	raws    map[string]interface{}

	sendErr   error
	deleteErr error
	nextID    int
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sends = append(f.sends, call{to: to.Recipient(), what: what, opts: opts})
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	return &tele.Message{ID: f.nextID, Chat: &tele.Chat{ID: 42}}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.deletes = append(f.deletes, msg)
	return f.deleteErr
}

func (f *fakeAPI) Raw(method string, payload interface{}) ([]byte, error) {
	if f.raws == nil {
		f.raws = map[string]interface{}{}
	}
	f.raws[method] = payload
	return []byte(`{"ok":true,"result":true}`), nil
}

func TestMessengerSendTextWithKeyboard(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api, nil)

	ref, err := m.SendText(context.Background(), 42, "hi", &shop.Keyboard{Reply: [][]string{{"a", "b"}}})
	require.NoError(t, err)
	assert.Equal(t, shop.MessageRef{ChatID: 42, MessageID: 1}, ref)

	require.Len(t, api.sends, 1)
	assert.Equal(t, "42", api.sends[0].to)
	assert.Equal(t, "hi", api.sends[0].what)
	require.Len(t, api.sends[0].opts, 1)
	rm, ok := api.sends[0].opts[0].(*tele.ReplyMarkup)
	require.True(t, ok)
	assert.True(t, rm.ResizeKeyboard)
}

func TestMessengerSendErrors(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("blocked")}
	m := NewMessenger(api, nil)
	ref, err := m.SendPhoto(context.Background(), 42, "photo-1", "cap", nil)
	assert.Error(t, err)
	assert.Zero(t, ref)
	assert.Empty(t, api.sends[0].opts)
}

func TestMessengerPayloads(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api, nil)
	ctx := context.Background()

	_, err := m.SendDocument(ctx, 7, "file-1", "a.pdf", "Гайд: A")
	require.NoError(t, err)
	doc, ok := api.sends[0].what.(*tele.Document)
	require.True(t, ok)
	assert.Equal(t, "file-1", doc.FileID)
	assert.Equal(t, "a.pdf", doc.FileName)

	require.NoError(t, m.SendInvoice(ctx, 7, shop.Invoice{Title: "A", Description: "d", Payload: "guide:A", Label: "XTR", Amount: 100}))
	inv, ok := api.sends[1].what.(*tele.Invoice)
	require.True(t, ok)
	assert.Equal(t, "XTR", inv.Currency)
	assert.Equal(t, "guide:A", inv.Payload)
	require.Len(t, inv.Prices, 1)
	assert.Equal(t, 100, inv.Prices[0].Amount)

	require.NoError(t, m.SendFile(ctx, 7, "stats.txt", []byte("report"), "cap"))
	up, ok := api.sends[2].what.(*tele.Document)
	require.True(t, ok)
	require.NotNil(t, up.FileReader)
	body, err := io.ReadAll(up.FileReader)
	require.NoError(t, err)
	assert.Equal(t, "report", string(body))
}

func TestMessengerNotifyQueues(t *testing.T) {
	api := &fakeAPI{}
	disp := sender.NewDispatcher(sender.Options{Workers: 1})
	m := NewMessenger(api, disp)

	require.NoError(t, m.Notify(context.Background(), 9, "report"))
	disp.Close()
	require.Len(t, api.sends, 1)
	assert.Equal(t, "9", api.sends[0].to)
	assert.Equal(t, "report", api.sends[0].what)

	// closed queue: sent inline
	require.NoError(t, m.Notify(context.Background(), 9, "late"))
	assert.Len(t, api.sends, 2)
}

func TestMessengerDeleteIgnoresMissing(t *testing.T) {
	api := &fakeAPI{deleteErr: tele.ErrNotFoundToDelete}
	m := NewMessenger(api, nil)
	require.NoError(t, m.Delete(context.Background(), shop.MessageRef{ChatID: 3, MessageID: 9}))

	require.Len(t, api.deletes, 1)
	id, chat := api.deletes[0].MessageSig()
	assert.Equal(t, "9", id)
	assert.Equal(t, int64(3), chat)

	api.deleteErr = errors.New("forbidden")
	assert.Error(t, m.Delete(context.Background(), shop.MessageRef{ChatID: 3, MessageID: 10}))
}

func TestMessengerRefund(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api, nil)
	assert.Error(t, m.Refund(context.Background(), 5, ""))
	assert.Empty(t, api.raws)

	require.NoError(t, m.Refund(context.Background(), 5, "charge"))
	assert.Equal(t, map[string]string{"user_id": "5", "telegram_payment_charge_id": "charge"}, api.raws["refundStarPayment"])
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(nil))
	assert.Nil(t, Markup(&shop.Keyboard{}))
	assert.True(t, Markup(&shop.Keyboard{Remove: true}).RemoveKeyboard)

	rm := Markup(&shop.Keyboard{
		Inline: [][]shop.Button{{{Text: "Alpha", Unique: "sel_guide", Data: "Alpha"}}},
		Reply:  [][]string{{"ignored"}},
	})
	require.NotNil(t, rm)
	require.Len(t, rm.InlineKeyboard, 1)
	btn := rm.InlineKeyboard[0][0]
	assert.Equal(t, "Alpha", btn.Text)
	assert.Equal(t, "sel_guide", btn.Unique)
	assert.Empty(t, rm.ReplyKeyboard)
}
