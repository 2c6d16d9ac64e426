package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/sitemap"
	"github.com/romangod6/sitemapper/internal/storage"
	"github.com/romangod6/sitemapper/internal/utils"
	"github.com/temoto/robotstxt"
)

// Crawler discovers the indexable pages of one site and stores them.
// A Crawler runs a single crawl; create a new one per run.
type Crawler struct {
	collector *colly.Collector
	store     storage.Store
	config    *CrawlerConfig
	logger    *utils.CrawlerLogger
	metrics   *metrics.Recorder
	client    *http.Client
	robots    *robotstxt.RobotsData
	now       func() time.Time

	mu    sync.Mutex
	stats Stats
}

type CrawlerConfig struct {
	SiteID         uuid.UUID
	BaseURL        string
	StartURL       string
	SitemapURL     string
	UserAgent      string
	MaxDepth       int
	AllowedDomains []string
	RespectRobots  bool
	Parallelism    int
	Delay          time.Duration
	ChangeFreq     sitemap.ChangeFreq
	RequestTimeout time.Duration
}

// Stats summarizes a crawl run.
type Stats struct {
	Visited  int `json:"visited"`
	Recorded int `json:"recorded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func NewCrawler(store storage.Store, config *CrawlerConfig, logger *utils.CrawlerLogger, rec *metrics.Recorder) (*Crawler, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q is not absolute", sitemap.ErrInvalidArgument, config.BaseURL)
	}
	if len(config.AllowedDomains) == 0 {
		config.AllowedDomains = []string{base.Hostname()}
	}
	if config.ChangeFreq == "" {
		config.ChangeFreq = sitemap.DefaultChangeFreq
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxDepth(config.MaxDepth),
		colly.AllowedDomains(config.AllowedDomains...),
		colly.Async(true),
	)
	c.SetRequestTimeout(config.RequestTimeout)

	// Set reasonable limits
	rule := &colly.LimitRule{
		DomainGlob: "*",
		Delay:      config.Delay,
	}
	if config.Parallelism > 0 {
		rule.Parallelism = config.Parallelism
	}
	if err := c.Limit(rule); err != nil {
		return nil, fmt.Errorf("failed to set crawl limits: %w", err)
	}

	return &Crawler{
		collector: c,
		store:     store,
		config:    config,
		logger:    logger,
		metrics:   rec,
		client:    &http.Client{Timeout: config.RequestTimeout},
		now:       time.Now,
	}, nil
}

func (c *Crawler) Crawl(ctx context.Context) (Stats, error) {
	if c.config.RespectRobots {
		c.loadRobots(ctx)
	}
	c.setupHandlers(ctx)

	seeds := []string{c.config.StartURL}
	if c.config.StartURL == "" {
		seeds[0] = c.config.BaseURL + "/"
	}
	if c.config.SitemapURL != "" {
		locs, err := c.sitemapSeeds(ctx, c.config.SitemapURL)
		if err != nil {
			c.logError("Failed to read seed sitemap %s: %v", c.config.SitemapURL, err)
		} else {
			c.logInfo("Seeded %d URLs from %s", len(locs), c.config.SitemapURL)
			seeds = append(seeds, locs...)
		}
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		for idx, seed := range seeds {
			if ctx.Err() != nil {
				break
			}
			c.logDebug("Queueing seed %d/%d: %s", idx+1, len(seeds), seed)
			if err := c.collector.Visit(seed); err != nil && !isExpectedVisitError(err) {
				c.logError("Error visiting %s: %v", seed, err)
			}
		}
		c.collector.Wait()
	}()

	// Outstanding requests abort themselves once ctx is done, so waiting
	// for the collector is bounded by the request timeout.
	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}

	stats := c.Stats()
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (c *Crawler) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Crawler) setupHandlers(ctx context.Context) {
	c.collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if !c.allowedByRobots(r.URL) {
			c.skip("robots", "Skipping %s: disallowed by robots.txt", r.URL)
			r.Abort()
		}
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		c.stats.Failed++
		c.mu.Unlock()
		c.logError("Failed to fetch %s: %v", r.Request.URL, err)
	})

	c.collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()
		c.mu.Lock()
		c.stats.Visited++
		c.mu.Unlock()

		var header http.Header
		if e.Response.Headers != nil {
			header = *e.Response.Headers
		}
		info := ParsePage(e.DOM, header)

		if !info.NoFollow {
			for _, href := range info.Links {
				link := e.Request.AbsoluteURL(href)
				if link == "" {
					continue
				}
				if err := e.Request.Visit(link); err != nil && !isExpectedVisitError(err) {
					c.logDebug("Not following %s: %v", link, err)
				}
			}
		}

		if info.NoIndex {
			c.skip("noindex", "Skipping %s: noindex", pageURL)
			return
		}

		if info.Canonical != "" {
			canonical := e.Request.AbsoluteURL(info.Canonical)
			if canonical != "" && normalizeURL(canonical) != normalizeURL(pageURL) {
				c.skip("canonical", "Skipping %s: canonical is %s", pageURL, canonical)
				e.Request.Visit(canonical)
				return
			}
		}

		path, ok := c.relativePath(e.Request.URL)
		if !ok {
			c.skip("outside_base", "Skipping %s: outside %s", pageURL, c.config.BaseURL)
			return
		}

		page := models.NewPage(c.config.SiteID, path)
		page.Title = info.Title
		page.ChangeFreq = c.config.ChangeFreq.String()
		page.Priority = priorityForPath(path)
		page.LastModified = info.ModifiedAt
		if page.LastModified.IsZero() {
			page.LastModified = c.now()
		}

		if err := c.store.UpsertPage(context.WithoutCancel(ctx), page); err != nil {
			c.logError("Error saving page %s: %v", path, err)
			return
		}

		c.mu.Lock()
		c.stats.Recorded++
		c.mu.Unlock()
		c.metrics.PageRecorded()
		c.logInfo("Recorded %s (priority %s)", path, sitemap.FormatPriority(page.Priority))
	})
}

// relativePath strips the base URL from u. Pages outside the base are
// reported with ok=false.
func (c *Crawler) relativePath(u *url.URL) (string, bool) {
	abs := *u
	abs.Fragment = ""
	s := abs.String()
	base := strings.TrimSuffix(c.config.BaseURL, "/")
	if !strings.HasPrefix(s, base) {
		return "", false
	}
	rest := strings.TrimPrefix(s, base)
	if rest == "" {
		return "/", true
	}
	if !strings.HasPrefix(rest, "/") && !strings.HasPrefix(rest, "?") {
		// base https://example.com/docs must not match https://example.com/docsearch
		return "", false
	}
	return rest, true
}

func (c *Crawler) loadRobots(ctx context.Context) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return
	}
	robotsURL := base.Scheme + "://" + base.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		// No robots.txt means everything may be crawled.
		c.logDebug("robots.txt unavailable at %s: %v", robotsURL, err)
		return
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		c.logError("Failed to parse %s: %v", robotsURL, err)
		return
	}
	c.robots = data
}

func (c *Crawler) allowedByRobots(u *url.URL) bool {
	if c.robots == nil {
		return true
	}
	return c.robots.TestAgent(u.RequestURI(), c.config.UserAgent)
}

// sitemapSeeds resolves a sitemap or sitemap index into page locations.
func (c *Crawler) sitemapSeeds(ctx context.Context, sitemapURL string) ([]string, error) {
	set, idx, err := c.fetchSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if set != nil {
		return locations(set), nil
	}

	var locs []string
	for _, ref := range idx.Sitemaps {
		child, _, err := c.fetchSitemap(ctx, ref.Loc)
		if err != nil {
			c.logError("Failed to read child sitemap %s: %v", ref.Loc, err)
			continue
		}
		if child != nil {
			locs = append(locs, locations(child)...)
		}
	}
	return locs, nil
}

func (c *Crawler) fetchSitemap(ctx context.Context, sitemapURL string) (*sitemap.URLSet, *sitemap.IndexSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, sitemapURL)
	}
	return sitemap.Parse(resp.Body)
}

func (c *Crawler) skip(reason, format string, v ...interface{}) {
	c.mu.Lock()
	c.stats.Skipped++
	c.mu.Unlock()
	c.metrics.PageSkipped(reason)
	c.logDebug(format, v...)
}

func (c *Crawler) logInfo(format string, v ...interface{}) {
	if c.logger != nil {
		c.logger.LogInfo(format, v...)
	}
}

func (c *Crawler) logError(format string, v ...interface{}) {
	if c.logger != nil {
		c.logger.LogError(format, v...)
	}
}

func (c *Crawler) logDebug(format string, v ...interface{}) {
	if c.logger != nil {
		c.logger.LogDebug(format, v...)
	}
}

func locations(set *sitemap.URLSet) []string {
	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}

// priorityForPath gives the root 1.0 and drops 0.2 per path segment,
// bottoming out at 0.1.
func priorityForPath(path string) float64 {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	segments := 0
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			segments++
		}
	}
	tenths := 10 - 2*segments
	if tenths < 1 {
		tenths = 1
	}
	return float64(tenths) / 10
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func isExpectedVisitError(err error) bool {
	return errors.Is(err, colly.ErrAlreadyVisited) ||
		errors.Is(err, colly.ErrForbiddenDomain) ||
		errors.Is(err, colly.ErrMaxDepth) ||
		errors.Is(err, colly.ErrRobotsTxtBlocked)
}
