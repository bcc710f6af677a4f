// Package netutil classifies Bot API call failures for retry decisions.
package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether err is transient: a flood-control response, a
// timeout, or a failed dial. API errors such as 400 are never retried.
func ShouldRetry(err error) bool {
	var (
		flood  tele.FloodError
		opErr  *net.OpError
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &flood):
		return true
	case errors.As(err, &netErr) && netErr.Timeout():
		return true
	case errors.As(err, &opErr):
		return opErr.Op == "dial"
	case errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err):
		return ShouldRetry(urlErr.Err)
	}
	return false
}

// RetryAfter returns the wait requested by a flood-control error, or 0.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if !errors.As(err, &flood) || flood.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(flood.RetryAfter) * time.Second
}
