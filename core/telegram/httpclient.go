package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/guideshop/core/telegram/netutil"
)

// Transport limits for Bot API calls.
const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 5 * time.Second
	idleTimeout      = 30 * time.Second
	keepAlive        = 30 * time.Second
	responseSlack    = 5 * time.Second

	transportRetries = 3
	transportBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. getUpdates blocks
// for the whole poll, so the header and total timeouts are derived from it.
func BuildHTTPClient(pollTimeoutSeconds int) *http.Client {
	poll := PollTimeout(pollTimeoutSeconds)
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   handshakeTimeout,
		ResponseHeaderTimeout: poll + responseSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   2*poll + responseSlack,
		Transport: &retryTransport{next: base, retries: transportRetries, backoff: transportBackoff},
	}
}

// retryTransport repeats requests that failed before any response arrived.
// Bodies must be replayable through GetBody.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if werr := sleepCtx(req, t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		again := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			again.Body = body
		}
		resp, err = t.next.RoundTrip(again)
	}
	return resp, err
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
