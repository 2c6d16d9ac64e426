package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/romangod6/sitemapper/internal/crawler"
	"github.com/romangod6/sitemapper/internal/generator"
	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/storage"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	port    int
	server  *http.Server
	handler *Handler
}

// Options wires the server's dependencies. Store, Runner and Generator are required.
type Options struct {
	Port      int
	Store     storage.Store
	Runner    *crawler.Runner
	Generator *generator.Generator
	Metrics   *metrics.Recorder
	Logger    *zap.Logger

	// PublicURL is the externally visible origin used for sitemap index
	// locations. Empty means the request's own scheme and host.
	PublicURL string
	CacheTTL  time.Duration

	// RespectRobots is applied to sites created without an explicit choice.
	RespectRobots bool
}

// NewServer builds the router. It chains the runner's OnComplete hook so
// finished crawls drop the site's cached sitemaps.
func NewServer(opts Options) *Server {
	router := gin.Default()

	// Setup CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Create handler
	handler := NewHandler(opts)
	if opts.Runner != nil {
		previous := opts.Runner.OnComplete
		opts.Runner.OnComplete = func(site *models.Site) {
			handler.invalidate(site.ID)
			if previous != nil {
				previous(site)
			}
		}
	}

	// Setup routes
	api := router.Group("/api")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		sites := api.Group("/sites")
		{
			sites.GET("", handler.ListSites)
			sites.POST("", handler.CreateSite)
			sites.GET("/:id", handler.GetSite)
			sites.PUT("/:id", handler.UpdateSite)
			sites.DELETE("/:id", handler.DeleteSite)
			sites.POST("/:id/crawl", handler.StartCrawl)

			sites.GET("/:id/pages", handler.ListPages)
			sites.POST("/:id/pages", handler.AddPage)
			sites.DELETE("/:id/pages", handler.DeletePage)
		}
	}

	router.GET("/sitemaps/:id/:file", handler.ServeSitemap)
	router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	return &Server{
		router:  router,
		port:    opts.Port,
		handler: handler,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and cancels crawls started through the API.
func (s *Server) Shutdown(ctx context.Context) error {
	s.handler.stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
