package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/romangod6/sitemapper/internal/crawler"
	"github.com/romangod6/sitemapper/internal/generator"
	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/sitemap"
	"github.com/romangod6/sitemapper/internal/storage"
	"go.uber.org/zap"
)

type Handler struct {
	store     storage.Store
	runner    *crawler.Runner
	generator *generator.Generator
	metrics   *metrics.Recorder
	logger    *zap.Logger
	publicURL string
	robots    bool
	cache     *cache.Cache

	ctx    context.Context
	cancel context.CancelFunc
	crawls sync.WaitGroup
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PaginationResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalCount int         `json:"total_count,omitempty"`
}

type siteRequest struct {
	Name           string   `json:"name" binding:"required"`
	BaseURL        string   `json:"baseUrl" binding:"required"`
	StartURL       string   `json:"startUrl"`
	SitemapURL     string   `json:"sitemapUrl"`
	UserAgent      string   `json:"userAgent"`
	CrawlInterval  string   `json:"crawlInterval"`
	MaxDepth       int      `json:"maxDepth"`
	AllowedDomains []string `json:"allowedDomains"`
	RespectRobots  *bool    `json:"respectRobots"`
}

type pageRequest struct {
	Path         string     `json:"path" binding:"required"`
	Title        string     `json:"title"`
	LastModified *time.Time `json:"lastModified"`
	ChangeFreq   string     `json:"changeFrequency"`
	Priority     *float64   `json:"priority"`
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		store:     opts.Store,
		runner:    opts.Runner,
		generator: opts.Generator,
		metrics:   opts.Metrics,
		logger:    logger,
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
		robots:    opts.RespectRobots,
		cache:     cache.New(ttl, 2*ttl),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.store.ListSites(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch sites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch sites"})
		return
	}

	if sites == nil {
		sites = []*models.Site{}
	}

	c.JSON(http.StatusOK, sites)
}

func (h *Handler) GetSite(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handler) CreateSite(c *gin.Context) {
	var req siteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid site data"})
		return
	}

	site := models.NewSite(req.Name, req.BaseURL)
	site.RespectRobots = h.robots
	if err := applySiteRequest(site, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.store.CreateSite(c.Request.Context(), site); err != nil {
		h.logger.Error("Failed to create site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create site"})
		return
	}

	c.JSON(http.StatusCreated, site)
}

func (h *Handler) UpdateSite(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}

	var req siteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid site data"})
		return
	}

	site.Name = req.Name
	if err := applySiteRequest(site, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	site.UpdatedAt = time.Now()

	if err := h.store.UpdateSite(c.Request.Context(), site); err != nil {
		h.logger.Error("Failed to update site", zap.Stringer("site", site.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update site"})
		return
	}

	h.invalidate(site.ID)
	c.JSON(http.StatusOK, site)
}

func (h *Handler) DeleteSite(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid site ID"})
		return
	}

	if err := h.store.DeleteSite(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Site not found"})
			return
		}
		h.logger.Error("Failed to delete site", zap.Stringer("site", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete site"})
		return
	}

	h.invalidate(id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// StartCrawl runs a crawl for the site in the background.
func (h *Handler) StartCrawl(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}
	name := site.Name
	h.crawls.Add(1)
	h.logger.Info("Starting crawl", zap.String("site", name), zap.Stringer("id", site.ID))
	err := h.runner.Go(h.ctx, site, func(stats crawler.Stats, err error) {
		defer h.crawls.Done()
		if err != nil {
			h.logger.Error("Crawl failed", zap.String("site", name), zap.Error(err))
			return
		}
		h.logger.Info("Crawl completed",
			zap.String("site", name),
			zap.Int("recorded", stats.Recorded),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	})
	if err != nil {
		h.crawls.Done()
		if errors.Is(err, crawler.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Crawl already running"})
			return
		}
		h.logger.Error("Failed to start crawl", zap.Stringer("site", site.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to start crawl"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "siteId": site.ID})
}

func (h *Handler) ListPages(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}

	page, limit := getPaginationParams(c)
	offset := (page - 1) * limit

	pages, err := h.store.ListPages(c.Request.Context(), site.ID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to fetch pages", zap.Stringer("site", site.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch pages"})
		return
	}
	total, err := h.store.CountPages(c.Request.Context(), site.ID)
	if err != nil {
		h.logger.Error("Failed to count pages", zap.Stringer("site", site.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch pages"})
		return
	}

	if pages == nil {
		pages = []*models.Page{}
	}

	c.JSON(http.StatusOK, PaginationResponse{
		Data:       pages,
		Page:       page,
		Limit:      limit,
		TotalCount: total,
	})
}

// AddPage records a page by hand. The entry is validated exactly as the
// sitemap document would validate it.
func (h *Handler) AddPage(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}

	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid page data"})
		return
	}

	page, err := buildPage(site, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.store.UpsertPage(c.Request.Context(), page); err != nil {
		h.logger.Error("Failed to save page", zap.Stringer("site", site.ID), zap.String("path", page.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save page"})
		return
	}

	h.invalidate(site.ID)
	c.JSON(http.StatusCreated, page)
}

func (h *Handler) DeletePage(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Page path is required"})
		return
	}

	if err := h.store.DeletePage(c.Request.Context(), site.ID, path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Page not found"})
			return
		}
		h.logger.Error("Failed to delete page", zap.Stringer("site", site.ID), zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete page"})
		return
	}

	h.invalidate(site.ID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) loadSite(c *gin.Context) (*models.Site, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid site ID"})
		return nil, false
	}

	site, err := h.store.GetSite(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Site not found"})
			return nil, false
		}
		h.logger.Error("Failed to fetch site", zap.Stringer("site", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch site"})
		return nil, false
	}
	return site, true
}

// stop cancels running crawls and waits for them to record their final status.
func (h *Handler) stop() {
	h.cancel()
	h.crawls.Wait()
}

func applySiteRequest(site *models.Site, req *siteRequest) error {
	// Documents join base URL and path verbatim, so keep the base without a trailing slash.
	baseURL := strings.TrimSuffix(strings.TrimSpace(req.BaseURL), "/")
	if _, err := sitemap.New(baseURL); err != nil {
		return err
	}
	if req.CrawlInterval != "" {
		if d, err := time.ParseDuration(req.CrawlInterval); err != nil || d <= 0 {
			return errors.New("invalid crawl interval: " + req.CrawlInterval)
		}
	}
	if req.MaxDepth < 0 {
		return errors.New("max depth must not be negative")
	}

	site.BaseURL = baseURL
	site.StartURL = req.StartURL
	site.SitemapURL = req.SitemapURL
	site.UserAgent = req.UserAgent
	site.CrawlInterval = req.CrawlInterval
	site.MaxDepth = req.MaxDepth
	site.AllowedDomains = req.AllowedDomains
	if req.RespectRobots != nil {
		site.RespectRobots = *req.RespectRobots
	}
	return nil
}

func buildPage(site *models.Site, req *pageRequest) (*models.Page, error) {
	changeFreq := sitemap.DefaultChangeFreq
	if req.ChangeFreq != "" {
		cf, err := sitemap.ParseChangeFreq(req.ChangeFreq)
		if err != nil {
			return nil, err
		}
		changeFreq = cf
	}
	priority := sitemap.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	lastModified := time.Now()
	if req.LastModified != nil {
		lastModified = *req.LastModified
	}

	doc, err := sitemap.New(site.BaseURL)
	if err != nil {
		return nil, err
	}
	err = doc.AddEntry(req.Path,
		sitemap.WithChangeFreq(changeFreq),
		sitemap.WithPriority(priority),
		sitemap.WithLastModified(lastModified),
	)
	if err != nil {
		return nil, err
	}

	page := models.NewPage(site.ID, req.Path)
	page.Title = req.Title
	page.ChangeFreq = changeFreq.String()
	page.Priority = priority
	page.LastModified = lastModified
	return page, nil
}

// Utility functions
func getPaginationParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	return page, limit
}
