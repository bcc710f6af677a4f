package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"

	defaultPollTimeout = 10 * time.Second
)

// AllowedUpdates lists the update types the shop handles. Successful payments arrive as messages.
var AllowedUpdates = []string{"message", "callback_query", "pre_checkout_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// PollTimeout returns the long poll timeout for seconds, or the 10s default when seconds <= 0.
func PollTimeout(seconds int) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultPollTimeout
}

// BuildPoller picks the webhook poller when RunMode says so (any case) and long polling otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	mode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if mode != RunModeWebhook {
		return &tele.LongPoller{
			Timeout:        PollTimeout(opts.LongPollTimeoutSeconds),
			AllowedUpdates: AllowedUpdates,
		}
	}
	return &tele.Webhook{
		Listen:         net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
		AllowedUpdates: AllowedUpdates,
		Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
	}
}
