package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, format logFormat, fn func(log *slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: format})
	fn(slog.New(h))
	require.NoError(t, aw.Close())
	return strings.TrimSpace(buf.String())
}

func TestHandlerKVOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := render(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "payment"), slog.LevelInfo, "handshake.opened",
			slog.String("status", "ok"),
			slog.String("cause", "unit"),
		)
	})

	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=payment", "event=handshake.opened", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	require.GreaterOrEqual(t, len(tokens), len(want), line)
	for i, prefix := range want {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
}

func TestHandlerJSONOrder(t *testing.T) {
	ctx := WithFlow(WithRID(context.Background(), "rid-json"), "submission")

	line := render(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "submission"), slog.LevelError, "catalog.create",
			slog.String("status", "fail"),
			slog.String("err", "boom"),
		)
	})

	require.True(t, strings.HasPrefix(line, "{"), line)
	pos := -1
	for _, pref := range []string{`{"ts":`, `"level":"ERROR"`, `"component":"submission"`, `"event":"catalog.create"`, `"status":"fail"`, `"rid":"rid-json"`, `"flow":"submission"`, `"err":"boom"`} {
		idx := strings.Index(line, pref)
		require.NotEqual(t, -1, idx, "missing %s in %s", pref, line)
		require.Greater(t, idx, pos, "%s out of order in %s", pref, line)
		pos = idx
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
}

func TestHandlerCompactRID(t *testing.T) {
	raw := BuildRID(123, 456, 789)
	ctx := WithRID(context.Background(), raw)

	kv := render(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, kv, "rid="+CompactRID(raw))
	assert.NotContains(t, kv, "rid_full=")

	js := render(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, js, `"rid":"`+CompactRID(raw)+`"`)
	assert.Contains(t, js, `"rid_full":"`+raw+`"`)
	assert.Contains(t, js, `"ts_unix_nano"`)
}

func TestHandlerNormalizesValues(t *testing.T) {
	line := render(t, formatKV, func(log *slog.Logger) {
		log.Info("reaper.scheduled",
			slog.Duration("delay", 15*time.Minute),
			slog.String("outcome", "not-a-value"),
			slog.String("status", "OK"),
			slog.String("empty", ""),
			slog.Any("err", errors.New("bad thing")),
		)
	})
	assert.Contains(t, line, "event=reaper.scheduled")
	assert.Contains(t, line, "component=app")
	assert.Contains(t, line, "delay_ms=900000")
	assert.Contains(t, line, "status=ok")
	assert.Contains(t, line, `err="bad thing"`)
	assert.NotContains(t, line, "outcome=")
	assert.NotContains(t, line, "empty=")
}

func TestHandlerGroupsAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: aw, format: formatKV})
	log := slog.New(h).WithGroup("db")

	log.Info("dropped")
	log.Warn("kept", slog.String("host", "pg"))
	require.NoError(t, aw.Close())

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "db.host=pg")
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "store_down" }

type StaleDecision struct{}

func (*StaleDecision) Error() string { return "stale" }

func TestErrCode(t *testing.T) {
	assert.Equal(t, "", ErrCode(nil))
	assert.Equal(t, "store_down", ErrCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "stale_decision", ErrCode(fmt.Errorf("wrap: %w", &StaleDecision{})))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "ab\ncd", Sanitize("a\x00b\ncd\u200b"))
	assert.Equal(t, "при", SanitizeLimit("привет", 3))
	assert.Equal(t, "", SanitizeLimit("x", 0))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	n, d := parseRatio("2/10")
	assert.Equal(t, [2]int{2, 10}, [2]int{n, d})
	n, d = parseRatio("25")
	assert.Equal(t, [2]int{1, 25}, [2]int{n, d})
}
