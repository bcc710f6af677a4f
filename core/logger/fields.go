package logger

import "strings"

// Level names emitted in the "level" field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// Closed vocabularies; values outside them are dropped (outcome) or kept verbatim (status).
var (
	statusValues  = set("ok", "fail", "skip", "retry", "rate_limited", "cancelled", "stale")
	outcomeValues = set("ok", "fail", "cancelled", "rate_limited", "rejected", "released", "expired", "superseded")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

func inVocabulary(vocab map[string]struct{}, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := vocab[v]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"flow",
	"step",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"kind",
	"item",
	"buyer_id",
	"admin_id",
	"handshake",
	"state",
	"payload",
	"username",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"action",
	"endpoint",
	"err",
	"err_code",
	"cause",
	"attempts",
	"elapsed_ms",
}
