package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates fields inside a callback payload.
const Sep = "|"

// MaxData is the Telegram limit for callback_data in bytes.
const MaxData = 64

// Parse splits Telebot's "\f<unique>|<payload>" encoding.
func Parse(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ = strings.Cut(raw, Sep)
	return strings.TrimSpace(unique), payload
}

// Payload returns the callback payload of the current update.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}

// Fits reports whether unique and payload encode within the Telegram limit.
func Fits(unique, payload string) bool {
	n := 1 + len(unique)
	if payload != "" {
		n += len(Sep) + len(payload)
	}
	return n <= MaxData
}

const answeredKey = "cb_answered"

// Answer responds to the callback query with text. Call it at most once per update.
func Answer(c tele.Context, text string) error {
	c.Set(answeredKey, true)
	if text == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// Answered reports whether Answer already ran for the update.
func Answered(c tele.Context) bool {
	ok, _ := c.Get(answeredKey).(bool)
	return ok
}
