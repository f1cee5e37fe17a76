package glossary

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per host. Decisions follow the
// library's status handling: 4xx allows everything, 5xx disallows.
type robotsCache struct {
	client *http.Client

	mu      sync.Mutex
	perHost map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *http.Client) *robotsCache {
	return &robotsCache{
		client:  client,
		perHost: make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the glossary user agent may fetch u.
func (r *robotsCache) Allowed(ctx context.Context, u *url.URL) (bool, error) {
	data, err := r.data(ctx, u)
	if err != nil {
		return false, err
	}
	return data.TestAgent(u.Path, userAgent), nil
}

func (r *robotsCache) data(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	if data, ok := r.perHost[u.Host]; ok {
		r.mu.Unlock()
		return data, nil
	}
	r.mu.Unlock()

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, "GET", robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.perHost[u.Host] = data
	r.mu.Unlock()
	return data, nil
}
