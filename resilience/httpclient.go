package resilience

import (
	"net/http"
	"time"
)

// limitedTransport caps the number of concurrent outgoing requests. Callers
// over the cap queue on the semaphore rather than fail; request contexts
// still bound the total wait.
type limitedTransport struct {
	base http.RoundTripper
	sem  chan struct{}
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case t.sem <- struct{}{}:
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	defer func() { <-t.sem }()
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns a shared client for all external calls. Concurrency
// is capped at maxConcurrent (default 16) to avoid overwhelming upstreams.
// Per-request timeouts are set by callers; timeout here is a hard ceiling.
func NewHTTPClient(maxConcurrent int, timeout time.Duration) *http.Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &limitedTransport{
			base: http.DefaultTransport,
			sem:  make(chan struct{}, maxConcurrent),
		},
	}
}
