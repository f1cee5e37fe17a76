// Package glossary resolves domain-term definitions by scraping an ordered
// list of public glossary sites, with caching, rate limiting, robots.txt
// compliance and a static fallback. Lookups never return a Go error; failure
// is a Definition carrying an error record, so the agent's tool call always
// has something well-formed to observe.
package glossary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mkleiva/wellgraph/cache"
	"github.com/mkleiva/wellgraph/resilience"
)

const (
	userAgent = "GraphRAG-Glossary/1.0"

	maxTermLen       = 100
	maxDefinitionLen = 2000
	// minHealthyChars is the smallest non-whitespace extraction accepted as
	// a real definition; anything shorter is a selector misfire.
	minHealthyChars = 10

	connectTimeout = 2 * time.Second
	totalTimeout   = 5 * time.Second

	cacheTTL = 15 * time.Minute
)

// Definition is the result of one term lookup. Exactly one of Definition or
// Error is meaningful; Fallback marks a static-store answer.
type Definition struct {
	Term         string    `json:"term"`
	Definition   string    `json:"definition,omitempty"`
	Source       string    `json:"source,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Cached       bool      `json:"cached"`
	Fallback     bool      `json:"fallback,omitempty"`
	Error        string    `json:"error,omitempty"`
	SourcesTried []string  `json:"sources_tried,omitempty"`
}

// Statics is the read side of the seeded static glossary, consulted when
// every remote source fails.
type Statics interface {
	Lookup(ctx context.Context, term string) (string, bool)
}

// Options configures a Service. Zero values get working defaults; Cache and
// Statics may be nil.
type Options struct {
	Sources []Source
	Cache   cache.Cache
	Statics Statics
	// RefillPerSecond is the per-host request rate. Default 1.
	RefillPerSecond float64
	Logger          *slog.Logger
}

// Service performs glossary lookups.
type Service struct {
	sources []Source
	cache   cache.Cache
	statics Statics
	limiter *resilience.HostLimiter
	robots  *robotsCache
	client  *http.Client
	retry   resilience.RetryPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a glossary service.
func NewService(opts Options) *Service {
	if len(opts.Sources) == 0 {
		opts.Sources = DefaultSources()
	}
	if opts.RefillPerSecond <= 0 {
		opts.RefillPerSecond = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := &http.Client{
		Timeout: totalTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	}
	return &Service{
		sources: opts.Sources,
		cache:   opts.Cache,
		statics: opts.Statics,
		limiter: resilience.NewHostLimiter(opts.RefillPerSecond, totalTimeout),
		robots:  newRobotsCache(client),
		client:  client,
		retry:   resilience.DefaultRetryPolicy(),
		logger:  opts.Logger,
		now:     time.Now,
	}
}

func cacheKey(source, term string) string {
	return "glossary:" + source + ":" + term
}

// Define resolves term. The returned Definition is always well-formed:
// scraped, cached, static-fallback, or an error record.
func (s *Service) Define(ctx context.Context, term string) Definition {
	term = NormalizeTerm(term)
	if term == "" || len(term) > maxTermLen {
		return Definition{
			Term:      term,
			Timestamp: s.now(),
			Error:     fmt.Sprintf("term must be 1..%d characters", maxTermLen),
		}
	}

	if def, ok := s.fromCache(ctx, term); ok {
		return def
	}

	var tried []string
	for _, src := range s.sources {
		tried = append(tried, src.Name)

		text, pageURL, err := s.scrape(ctx, src, term)
		if err != nil {
			s.logger.Debug("glossary source failed",
				"source", src.Name, "term", term, "error", err)
			continue
		}

		def := Definition{
			Term:       term,
			Definition: text,
			Source:     src.Name,
			SourceURL:  pageURL,
			Timestamp:  s.now(),
		}
		s.toCache(ctx, src.Name, term, def.Definition)
		return def
	}

	if s.statics != nil {
		if text, ok := s.statics.Lookup(ctx, term); ok && len(text) <= maxDefinitionLen {
			return Definition{
				Term:         term,
				Definition:   text,
				Source:       "static",
				Timestamp:    s.now(),
				Fallback:     true,
				SourcesTried: tried,
			}
		}
	}

	return Definition{
		Term:         term,
		Timestamp:    s.now(),
		Error:        "no source produced a definition",
		SourcesTried: tried,
	}
}

func (s *Service) fromCache(ctx context.Context, term string) (Definition, bool) {
	if s.cache == nil {
		return Definition{}, false
	}
	for _, src := range s.sources {
		if raw, ok := s.cache.Get(ctx, cacheKey(src.Name, term)); ok {
			return Definition{
				Term:       term,
				Definition: string(raw),
				Source:     src.Name,
				SourceURL:  src.URL(term),
				Timestamp:  s.now(),
				Cached:     true,
			}, true
		}
	}
	return Definition{}, false
}

func (s *Service) toCache(ctx context.Context, source, term, text string) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, cacheKey(source, term), []byte(text), cacheTTL)
}

// scrape fetches one source page and extracts the definition text.
func (s *Service) scrape(ctx context.Context, src Source, term string) (string, string, error) {
	pageURL := src.URL(term)

	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", err
	}

	allowed, err := s.robots.Allowed(ctx, u)
	if err != nil {
		return "", "", fmt.Errorf("robots check: %w", err)
	}
	if !allowed {
		return "", "", fmt.Errorf("disallowed by robots.txt")
	}

	if err := s.limiter.Wait(ctx, u.Host); err != nil {
		return "", "", err
	}

	var body []byte
	op := func() error {
		b, err := s.get(ctx, pageURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	if err := resilience.Retry(ctx, s.retry, "glossary "+src.Name, op); err != nil {
		return "", "", err
	}

	text, err := extract(body, src.Selectors)
	if err != nil {
		return "", "", err
	}
	// Oversized extractions are rejected, not capped; nothing longer than
	// maxDefinitionLen is ever cached.
	if len(text) > maxDefinitionLen {
		return "", "", fmt.Errorf("definition is %d characters, limit %d", len(text), maxDefinitionLen)
	}
	return text, pageURL, nil
}

func (s *Service) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("glossary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return body, nil
}

// extract tries each selector in order and returns the first extraction that
// passes the health check.
func extract(body []byte, selectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if healthy(text) {
			return collapseWhitespace(text), nil
		}
	}
	return "", fmt.Errorf("no selector produced usable text")
}

// healthy requires at least minHealthyChars non-whitespace characters.
func healthy(text string) bool {
	n := 0
	for _, r := range text {
		if !strings.ContainsRune(" \t\n\r", r) {
			n++
			if n >= minHealthyChars {
				return true
			}
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
