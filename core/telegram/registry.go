package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrInvalidRegistration is returned for empty names, missing handlers and bad command syntax.
var ErrInvalidRegistration = errors.New("telegram: invalid registration")

// Registry maps slash commands and callback uniques to handlers.
// Commands are registered during wiring only; callbacks are safe for concurrent use.
type Registry struct {
	commands map[string]commands.Command

	mu        sync.RWMutex
	callbacks map[string]tele.HandlerFunc
	fallback  tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback fallback says the button is stale.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		fallback: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Действие недоступно"})
		},
	}
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
}

// RegisterCommand binds name ("/cmd") to cmd. cmd needs a handler and a description.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return fmt.Errorf("%w: command %q", ErrInvalidRegistration, name)
	case cmd.Handler == nil || cmd.Description == "":
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return fmt.Errorf("%w: command %q", ErrInvalidRegistration, name)
	}
	if _, dup := r.commands[name]; dup {
		wireWarn("register.command.duplicate", slog.String("name", name))
		return fmt.Errorf("telegram: command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// Commands returns the registered commands keyed by "/name".
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// ListCommands returns the command menu sorted by name. visibleOnly drops hidden and admin commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves "/cmd", "/cmd@bot", "/cmd args" or a command alias.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", commands.Command{}, false
	}
	if strings.HasPrefix(text, "/") {
		name, _, _ := strings.Cut(text, " ")
		name, _, _ = strings.Cut(name, "@")
		if cmd, ok := r.commands[name]; ok {
			return name, cmd, true
		}
	}
	for name, cmd := range r.commands {
		if cmd.Matches(text) {
			return name, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// RegisterCallback binds a callback unique to h. Each unique can be bound once.
func (r *Registry) RegisterCallback(unique string, h tele.HandlerFunc) error {
	if unique == "" || h == nil {
		wireWarn("register.callback.skip", slog.String("key", unique), slog.Bool("handler_nil", h == nil))
		return fmt.Errorf("%w: callback %q", ErrInvalidRegistration, unique)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[unique]; dup {
		wireWarn("register.callback.duplicate", slog.String("key", unique))
		return fmt.Errorf("telegram: callback already registered: %s", unique)
	}
	r.callbacks[unique] = h
	return nil
}

// Callback returns the handler for unique. Unknown uniques get the fallback and false.
func (r *Registry) Callback(unique string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.callbacks[unique]; ok {
		return h, true
	}
	return r.fallback, false
}

// ListCallbacks returns the registered uniques in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetCallbackFallback replaces the handler used for unknown callbacks. nil is ignored.
func (r *Registry) SetCallbackFallback(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// InitBotCommands publishes the visible commands as the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	menu := reg.ListCommands(true)
	if err := bot.SetCommands(menu); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			append([]slog.Attr{slog.Int("commands", len(menu))}, logger.ErrAttrs(err)...)...)
	}
}
