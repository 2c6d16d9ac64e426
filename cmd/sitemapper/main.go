package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapper/config"
	"github.com/romangod6/sitemapper/internal/crawler"
	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/storage"
	"github.com/romangod6/sitemapper/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sitemapper",
	Short: "Crawl sites and publish their XML sitemaps",
	Long: `sitemapper crawls registered sites, stores their indexable pages and
renders sitemaps.org 0.9 documents from them, either served over HTTP or
written to disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Log.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		logger, err = utils.NewLogger(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, crawlCmd, generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (storage.Store, error) {
	store, err := storage.Open(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}
	return store, nil
}

func newRunner(store storage.Store, rec *metrics.Recorder) *crawler.Runner {
	return crawler.NewRunner(store, logger, rec, crawler.Defaults{
		UserAgent:     cfg.Crawler.UserAgent,
		MaxDepth:      cfg.Crawler.MaxDepth,
		CrawlInterval: cfg.GetCrawlDuration(),
		Parallelism:   cfg.Crawler.Parallelism,
		Delay:         cfg.GetCrawlDelay(),
		LogDir:        cfg.Log.Dir,
	})
}

// findSite resolves a site by ID or, failing that, by name.
func findSite(ctx context.Context, store storage.Store, ref string) (*models.Site, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return store.GetSite(ctx, id)
	}

	sites, err := store.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	for _, site := range sites {
		if site.Name == ref {
			return site, nil
		}
	}
	return nil, fmt.Errorf("site %q: %w", ref, storage.ErrNotFound)
}
