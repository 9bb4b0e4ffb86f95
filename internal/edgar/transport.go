// Package edgar implements the rate-limited, caching client for SEC EDGAR
// disclosure APIs and the enrichment orchestration built on top of it.
package edgar

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/edgar-enrich/internal/resilience"
)

// SEC fair-access guidance allows 10 requests per second per host.
const (
	hostRateLimit = rate.Limit(10)
	hostRateBurst = 10
)

// Transport performs single HTTP GETs against EDGAR hosts with a per-host
// token-bucket limiter and the mandatory User-Agent header. Status codes
// are classified into the resilience taxonomy so callers can decide what
// to retry.
type Transport struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTransport creates a Transport with connection pooling tuned for the
// two EDGAR hosts.
func NewTransport(userAgent string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transport{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		timeout:   timeout,
		limiters: map[string]*rate.Limiter{
			"www.sec.gov":  rate.NewLimiter(hostRateLimit, hostRateBurst),
			"data.sec.gov": rate.NewLimiter(hostRateLimit, hostRateBurst),
		},
	}
}

func (t *Transport) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[host]
	if !ok {
		lim = rate.NewLimiter(hostRateLimit, hostRateBurst)
		t.limiters[host] = lim
	}
	return lim
}

// Get fetches rawURL and returns the response body. 403 and 429 map to
// RateLimitError, 404 to NotFoundError, 5xx and timeouts to ServerError.
func (t *Transport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: parse url %q", rawURL)
	}

	if err := t.limiter(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "edgar: host limiter wait")
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: build request %s", rawURL)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &resilience.ServerError{
				Message: "request timeout: " + rawURL,
				URL:     rawURL,
			}
		}
		return nil, eris.Wrapf(err, "edgar: request %s", rawURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &resilience.RateLimitError{
			Message:    "rate limited by upstream",
			StatusCode: resp.StatusCode,
			URL:        rawURL,
		}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &resilience.NotFoundError{
			Message: "resource not found: " + rawURL,
			URL:     rawURL,
		}
	case resp.StatusCode >= 500:
		return nil, &resilience.ServerError{
			Message:    "upstream server error",
			StatusCode: resp.StatusCode,
			URL:        rawURL,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, eris.Errorf("edgar: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: read body %s", rawURL)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if ue, ok := err.(*url.Error); ok && ue.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
