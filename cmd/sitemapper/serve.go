package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/romangod6/sitemapper/internal/api"
	"github.com/romangod6/sitemapper/internal/crawler"
	"github.com/romangod6/sitemapper/internal/generator"
	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort     int
	scheduleEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the periodic crawl loop",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().DurationVar(&scheduleEvery, "schedule-every", time.Minute, "how often due sites are checked")
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec := metrics.NewRecorder(nil)
	runner := newRunner(store, rec)

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	// Initialize API server
	server := api.NewServer(api.Options{
		Port:   port,
		Store:  store,
		Runner: runner,
		Generator: generator.New(store,
			generator.WithMaxURLs(cfg.Sitemap.MaxURLs),
			generator.WithMetrics(rec),
		),
		Metrics:   rec,
		Logger:    logger,
		PublicURL: cfg.Sitemap.PublicURL,
		CacheTTL:  cfg.GetCacheTTL(),

		RespectRobots: cfg.Crawler.RespectRobots,
	})

	// Setup periodic crawling
	ticker := time.NewTicker(scheduleEvery)
	defer ticker.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loop sync.WaitGroup
	loop.Add(1)
	go func() {
		defer loop.Done()
		for {
			select {
			case <-ticker.C:
				logger.Debug("Checking for due crawls")
				runAllCrawls(ctx, store, runner, cfg.Crawler.MaxConcurrentCrawls)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Start the API server
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", zap.Int("port", port))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown
	err = waitForShutdown(serverErr, cancel, server)
	loop.Wait()
	return err
}

func runAllCrawls(ctx context.Context, store storage.Store, runner *crawler.Runner, maxConcurrentCrawls int) {
	sites, err := store.ListSites(ctx)
	if err != nil {
		logger.Error("Failed to fetch sites", zap.Error(err))
		return
	}

	if len(sites) == 0 {
		logger.Debug("No sites to crawl")
		return
	}
	if maxConcurrentCrawls < 1 {
		maxConcurrentCrawls = 1
	}

	now := time.Now()

	// Create a semaphore channel to limit concurrency
	semaphore := make(chan struct{}, maxConcurrentCrawls)
	wg := sync.WaitGroup{}

	for _, site := range sites {
		if !site.Due(now) {
			logger.Debug("Skipping site", zap.String("site", site.Name), zap.String("status", site.Status))
			continue
		}

		wg.Add(1)

		// Acquire a spot in the semaphore
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			wg.Wait()
			return
		}

		go func(site *models.Site) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release the spot in the semaphore

			logger.Info("Starting scheduled crawl", zap.String("site", site.Name), zap.String("baseUrl", site.BaseURL))
			stats, err := runner.Run(ctx, site)
			if errors.Is(err, crawler.ErrAlreadyRunning) {
				logger.Debug("Crawl already running", zap.String("site", site.Name))
				return
			}
			if err != nil {
				logger.Error("Crawl failed", zap.String("site", site.Name), zap.Error(err))
				return
			}
			logger.Info("Crawl completed", zap.String("site", site.Name), zap.Int("recorded", stats.Recorded))
		}(site)
	}

	wg.Wait() // Wait for all workers to finish
	logger.Debug("All due crawls completed")
}

func waitForShutdown(serverErr <-chan error, cancel context.CancelFunc, server *api.Server) error {
	// Handle system signals for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var err error
	select {
	case <-sigChan:
		logger.Info("Shutting down...")
	case err = <-serverErr:
		logger.Error("API server failed", zap.Error(err))
	}
	cancel()

	// Graceful server shutdown
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
		logger.Error("Error shutting down server", zap.Error(shutdownErr))
	}
	logger.Info("Server shut down gracefully")
	return err
}
