package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/spf13/cobra"
)

var crawlSite string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl one site now and store its pages",
	RunE:  runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSite, "site", "", "site ID or name")
	_ = crawlCmd.MarkFlagRequired("site")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	site, err := findSite(ctx, store, crawlSite)
	if err != nil {
		return fmt.Errorf("failed to load site: %w", err)
	}

	stats, err := newRunner(store, metrics.NewRecorder(nil)).Run(ctx, site)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: visited=%d recorded=%d skipped=%d failed=%d\n",
		site.Name, stats.Visited, stats.Recorded, stats.Skipped, stats.Failed)
	return err
}
