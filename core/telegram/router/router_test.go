package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/guideshop/core/telegram"
	"github.com/m3rciful/guideshop/core/telegram/commands"
)

type stubFlow struct {
	name    string
	handles bool
	err     error
	calls   int
}

func (f *stubFlow) Name() string { return f.name }

func (f *stubFlow) HandleMessage(tele.Context) (bool, error) {
	f.calls++
	return f.handles, f.err
}

func message(t *testing.T, userID int64, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   text,
	}})
}

func TestMessageRoutesAliasBeforeFlows(t *testing.T) {
	reg := tg.NewRegistry()
	var ran int
	reg.RegisterCommand("/guides", commands.Command{
		Handler:     func(tele.Context) error { ran++; return nil },
		Description: "guides",
		Aliases:     []string{"📖 Гайды"},
	})
	flow := &stubFlow{name: "submission", handles: true}
	routes := MessageRoutes(reg, MessageOptions{Flows: []Flow{flow}})
	require.NotEmpty(t, routes)

	require.NoError(t, routes[0].Handler(message(t, 1, "📖 Гайды")))
	assert.Equal(t, 1, ran)
	assert.Zero(t, flow.calls)

	require.NoError(t, routes[0].Handler(message(t, 1, "Guide Alpha")))
	assert.Equal(t, 1, flow.calls)
}

func TestMessageRoutesFlowOrderAndUnknown(t *testing.T) {
	idle := &stubFlow{name: "submission"}
	busy := &stubFlow{name: "payment", handles: true}
	var unknown int
	routes := MessageRoutes(nil, MessageOptions{
		Flows:   []Flow{idle, busy},
		Unknown: func(tele.Context) error { unknown++; return nil },
	})
	h := routes[0].Handler

	require.NoError(t, h(message(t, 2, "hi")))
	assert.Equal(t, 1, idle.calls)
	assert.Equal(t, 1, busy.calls)
	assert.Zero(t, unknown)

	busy.handles = false
	require.NoError(t, h(message(t, 2, "hi")))
	assert.Equal(t, 1, unknown)

	boom := errors.New("boom")
	idle.err = boom
	assert.ErrorIs(t, h(message(t, 2, "hi")), boom)
}

func TestMessageRoutesCoverAttachments(t *testing.T) {
	flow := &stubFlow{name: "submission", handles: true}
	routes := MessageRoutes(nil, MessageOptions{Flows: []Flow{flow}})

	endpoints := make([]any, 0, len(routes))
	byEndpoint := make(map[string]tele.HandlerFunc, len(routes))
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint)
		byEndpoint[r.Endpoint.(string)] = r.Handler
	}
	for _, e := range []string{tele.OnPhoto, tele.OnDocument, tele.OnVideo, tele.OnVideoNote, tele.OnSticker} {
		assert.Contains(t, endpoints, e)
	}

	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	c := b.NewContext(tele.Update{ID: 2, Message: &tele.Message{
		Sender:    &tele.User{ID: 3},
		Chat:      &tele.Chat{ID: 3, Type: tele.ChatPrivate},
		VideoNote: &tele.VideoNote{File: tele.File{FileID: "vn"}},
	}})
	require.NoError(t, byEndpoint[tele.OnVideoNote](c))
	assert.Equal(t, 1, flow.calls)
}

func TestAdminOnlyAlias(t *testing.T) {
	reg := tg.NewRegistry()
	var ran, rejected int
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     func(tele.Context) error { ran++; return nil },
		Description: "admin",
		AdminOnly:   true,
		Aliases:     []string{"Админка"},
	})
	routes := MessageRoutes(reg, MessageOptions{Admin: CommandRouteOptions{
		IsAdmin:       func(id int64) bool { return id == 10 },
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	}})

	require.NoError(t, routes[0].Handler(message(t, 5, "Админка")))
	require.NoError(t, routes[0].Handler(message(t, 10, "Админка")))
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, rejected)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "stats", normalizeHandlerName("/Stats"))
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
}
