package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/storage"
	"github.com/romangod6/sitemapper/internal/utils"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when a crawl for the site is still in progress.
var ErrAlreadyRunning = errors.New("crawl already running")

// Runner executes crawls for stored sites and keeps their status current.
type Runner struct {
	store    storage.Store
	logger   *zap.Logger
	metrics  *metrics.Recorder
	defaults Defaults

	mu     sync.Mutex
	active map[uuid.UUID]struct{}

	// OnComplete is called after a crawl stored pages, e.g. to drop cached sitemaps.
	OnComplete func(site *models.Site)
}

// Defaults fill in crawl settings a site leaves unset.
type Defaults struct {
	UserAgent     string
	MaxDepth      int
	CrawlInterval time.Duration
	Parallelism   int
	Delay         time.Duration
	LogDir        string
}

func NewRunner(store storage.Store, logger *zap.Logger, rec *metrics.Recorder, defaults Defaults) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.CrawlInterval <= 0 {
		defaults.CrawlInterval = 24 * time.Hour
	}
	if defaults.LogDir == "" {
		defaults.LogDir = "logs"
	}
	return &Runner{
		store:    store,
		logger:   logger,
		metrics:  rec,
		defaults: defaults,
		active:   make(map[uuid.UUID]struct{}),
	}
}

// Run crawls site, recording status transitions and the next scheduled run.
// Only one crawl per site runs at a time.
func (r *Runner) Run(ctx context.Context, site *models.Site) (Stats, error) {
	if !r.claim(site.ID) {
		return Stats{}, ErrAlreadyRunning
	}
	defer r.release(site.ID)
	return r.run(ctx, site)
}

// Go claims site and crawls it in the background, calling done when the
// crawl finishes. The claim happens before Go returns.
func (r *Runner) Go(ctx context.Context, site *models.Site, done func(Stats, error)) error {
	if !r.claim(site.ID) {
		return ErrAlreadyRunning
	}
	go func() {
		defer r.release(site.ID)
		stats, err := r.run(ctx, site)
		if done != nil {
			done(stats, err)
		}
	}()
	return nil
}

// Running reports whether a crawl for id is in progress in this process.
func (r *Runner) Running(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[id]
	return ok
}

func (r *Runner) claim(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; ok {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

func (r *Runner) release(id uuid.UUID) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context, site *models.Site) (Stats, error) {
	logger, err := utils.NewCrawlerLogger(r.logger, r.defaults.LogDir, site.Name)
	if err != nil {
		r.logger.Error("Failed to create crawl logger", zap.Error(err))
		return Stats{}, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	cfg := r.configFor(site)
	logger.LogInfo("Starting crawler for %s (ID: %s)", site.Name, site.ID)
	logger.LogInfo("Configuration details:")
	logger.LogInfo("  Base URL: %s", cfg.BaseURL)
	logger.LogInfo("  Start URL: %s", cfg.StartURL)
	logger.LogInfo("  Sitemap URL: %s", cfg.SitemapURL)
	logger.LogInfo("  Max Depth: %d", cfg.MaxDepth)
	logger.LogInfo("  User Agent: %s", cfg.UserAgent)
	logger.LogInfo("  Allowed Domains: %v", cfg.AllowedDomains)
	logger.LogInfo("  Respect robots.txt: %t", cfg.RespectRobots)

	site.Status = models.StatusRunning
	site.Errors = nil
	site.UpdatedAt = time.Now()
	if err := r.store.UpdateSite(ctx, site); err != nil {
		logger.LogError("Failed to update site status: %v", err)
		return Stats{}, fmt.Errorf("failed to update site status: %w", err)
	}

	started := time.Now()
	stats, err := r.crawl(ctx, cfg, logger)
	now := time.Now()

	if err != nil {
		site.Status = models.StatusError
		site.Errors = append(site.Errors, err.Error())
		logger.LogError("Crawl failed with error: %v", err)
		r.metrics.ObserveCrawl("error", now.Sub(started))
	} else {
		site.Status = models.StatusCompleted
		logger.LogInfo("Crawl completed: visited=%d recorded=%d skipped=%d failed=%d",
			stats.Visited, stats.Recorded, stats.Skipped, stats.Failed)
		r.metrics.ObserveCrawl("success", now.Sub(started))
	}

	site.LastRun = &now
	nextRun := now.Add(site.CrawlDuration(r.defaults.CrawlInterval))
	site.NextRun = &nextRun
	site.UpdatedAt = now
	logger.LogInfo("Next scheduled run: %v", nextRun)

	if stats.Recorded > 0 && r.OnComplete != nil {
		r.OnComplete(site)
	}

	// The run context may already be cancelled; the final status still has to land.
	if updateErr := r.store.UpdateSite(context.WithoutCancel(ctx), site); updateErr != nil {
		logger.LogError("Error updating site status: %v", updateErr)
	}

	logger.LogInfo("Crawler execution finished. Status: %s", site.Status)
	if err != nil {
		return stats, fmt.Errorf("crawl failed: %w", err)
	}
	return stats, nil
}

func (r *Runner) crawl(ctx context.Context, cfg *CrawlerConfig, logger *utils.CrawlerLogger) (Stats, error) {
	c, err := NewCrawler(r.store, cfg, logger, r.metrics)
	if err != nil {
		return Stats{}, err
	}
	return c.Crawl(ctx)
}

func (r *Runner) configFor(site *models.Site) *CrawlerConfig {
	cfg := &CrawlerConfig{
		SiteID:         site.ID,
		BaseURL:        site.BaseURL,
		StartURL:       site.EntryPoint(),
		SitemapURL:     site.SitemapURL,
		UserAgent:      site.UserAgent,
		MaxDepth:       site.MaxDepth,
		AllowedDomains: site.AllowedDomains,
		RespectRobots:  site.RespectRobots,
		Parallelism:    r.defaults.Parallelism,
		Delay:          r.defaults.Delay,
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = r.defaults.UserAgent
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = r.defaults.MaxDepth
	}
	return cfg
}
