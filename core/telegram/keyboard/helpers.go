// Package keyboard builds telebot reply markups from plain rows.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button: a label plus the callback unique and payload it sends.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Inline builds an inline keyboard. Empty rows are dropped.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	grid := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, tele.InlineButton{Text: b.Text, Unique: b.Unique, Data: b.Data})
		}
		grid = append(grid, line)
	}
	return &tele.ReplyMarkup{InlineKeyboard: grid}
}

// Reply builds a resized reply keyboard, one label per button.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	grid := make([][]tele.ReplyButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.ReplyButton, len(row))
		for i, label := range row {
			line[i] = tele.ReplyButton{Text: label}
		}
		grid = append(grid, line)
	}
	return &tele.ReplyMarkup{ReplyKeyboard: grid, ResizeKeyboard: true}
}

// Remove hides the reply keyboard.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
