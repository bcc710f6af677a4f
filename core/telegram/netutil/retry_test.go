package netutil

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}
	assert.True(t, ShouldRetry(dial))
	assert.True(t, ShouldRetry(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}))
	assert.True(t, ShouldRetry(tele.FloodError{RetryAfter: 3}))

	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("telegram: bad request (400)")))
	assert.False(t, ShouldRetry(&net.OpError{Op: "read", Err: errors.New("reset")}))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, RetryAfter(tele.FloodError{RetryAfter: 3}))
	assert.Zero(t, RetryAfter(errors.New("x")))
}
