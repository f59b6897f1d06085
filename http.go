package feedview

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/time/rate"
)

// Default throttle for the unsns backend. A poll cycle costs a single
// feed request every 10 seconds; the burst leaves room for a flurry of
// user actions, each of which adds one request plus the refresh it
// triggers.
const (
	DefaultRequestInterval = time.Second
	DefaultRequestBurst    = 5
)

// LimitedHTTPClient performs throttled requests to the unsns backend.
// The feed is re-fetched in full every few seconds and every user action
// triggers another fetch, so the throttle keeps a runaway loop from
// hammering the server. The zero value is not valid for use.
type LimitedHTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewLimitedHTTPClient returns a client allowing one request per
// interval with the given burst, with a cookie jar configured. The jar
// carries the backend's session cookie, which is how the server
// recognizes the logged-in viewer.
func NewLimitedHTTPClient(interval time.Duration, burst int) (*LimitedHTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create cookie jar: %w", err)
	}
	return &LimitedHTTPClient{
		client: &http.Client{
			Jar: jar,
		},
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}, nil
}

// Do waits until the client is within rate limits and then performs the
// request.
func (c *LimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	r := c.limiter.Reserve()
	if !r.OK() {
		return nil, errors.New("invalid limiter configuration")
	}
	select {
	case <-req.Context().Done():
		return nil, req.Context().Err()
	case <-time.After(r.Delay()):
		return c.client.Do(req)
	}
}
