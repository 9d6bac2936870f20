package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxBytes    = 2 << 20
	DefaultMaxPages    = 20
	DefaultMaxDepth    = 1
	DefaultConcurrency = 4
	defaultUserAgent   = "fllm-crawler/1.0"
)

// ErrNotHTML is returned for responses that are not HTML or plain text.
var ErrNotHTML = errors.New("crawler: response is not html")

// Fetcher downloads pages with a politeness limit.
type Fetcher struct {
	HTTP        *http.Client
	UserAgent   string
	MaxBytes    int64
	Concurrency int
	// Limiter spaces requests; nil means unlimited.
	Limiter *rate.Limiter
}

// NewFetcher returns a fetcher with a timeout and a requests-per-second limit.
func NewFetcher(timeout time.Duration, requestsPerSecond float64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &Fetcher{HTTP: &http.Client{Timeout: timeout}}
	if requestsPerSecond > 0 {
		f.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return f
}

// Fetch downloads and extracts a single page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return Page{}, err
	}
	return f.fetch(ctx, target)
}

func (f *Fetcher) fetch(ctx context.Context, target *url.URL) (Page, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return Page{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	userAgent := f.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body := io.LimitReader(resp.Body, limit)
	// Redirects change the base for relative links.
	final := resp.Request.URL
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return Extract(final, body)
	case strings.HasPrefix(mediaType, "text/"):
		data, err := io.ReadAll(body)
		if err != nil {
			return Page{}, fmt.Errorf("read %s: %w", target, err)
		}
		return Page{URL: final.String(), Text: tidy(string(data))}, nil
	default:
		return Page{}, fmt.Errorf("%w: %s", ErrNotHTML, mediaType)
	}
}

// CrawlOptions bounds a crawl.
type CrawlOptions struct {
	MaxDepth int
	MaxPages int
}

// Crawl walks same-host links breadth first. Pages that fail to load are
// reported in the returned error list but do not stop the crawl.
func (f *Fetcher) Crawl(ctx context.Context, start string, opts CrawlOptions) ([]Page, []error, error) {
	root, err := parseTarget(start)
	if err != nil {
		return nil, nil, err
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	workers := f.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}

	visited := map[string]bool{canonical(root): true}
	frontier := []*url.URL{root}
	var pages []Page
	var failures []error
	for depth := 0; depth <= opts.MaxDepth && len(frontier) > 0 && len(pages) < opts.MaxPages; depth++ {
		if room := opts.MaxPages - len(pages); len(frontier) > room {
			frontier = frontier[:room]
		}
		results := make([]Page, len(frontier))
		errs := make([]error, len(frontier))
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(workers)
		for i, target := range frontier {
			group.Go(func() error {
				page, err := f.fetch(groupCtx, target)
				if err != nil {
					errs[i] = err
					return nil
				}
				page.Depth = depth
				results[i] = page
				return nil
			})
		}
		_ = group.Wait()
		if err := ctx.Err(); err != nil {
			return pages, failures, err
		}

		var next []*url.URL
		for i := range frontier {
			if errs[i] != nil {
				failures = append(failures, errs[i])
				continue
			}
			pages = append(pages, results[i])
			for _, link := range results[i].Links {
				parsed, err := url.Parse(link)
				if err != nil || !strings.EqualFold(parsed.Host, root.Host) {
					continue
				}
				key := canonical(parsed)
				if !visited[key] {
					visited[key] = true
					next = append(next, parsed)
				}
			}
		}
		frontier = next
	}
	return pages, failures, nil
}

func parseTarget(rawURL string) (*url.URL, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("url %q must use http or https", rawURL)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}
	target.Fragment = ""
	return target, nil
}

// canonical keys visited URLs without fragment or trailing slash.
func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Path = strings.TrimRight(c.Path, "/")
	c.Host = strings.ToLower(c.Host)
	return c.String()
}
