// Package commands describes slash commands and the texts that trigger them.
package commands

import (
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a registered command. Admin-only and hidden commands stay out of the public menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	// Aliases are extra texts that trigger the command, such as reply keyboard labels.
	Aliases []string
}

// Matches reports whether text is one of the aliases, with or without a leading slash.
func (c Command) Matches(text string) bool {
	bare := strings.TrimPrefix(text, "/")
	return slices.ContainsFunc(c.Aliases, func(a string) bool { return a == text || a == bare })
}
