// Command sitemap audits a published sitemap: it samples listed pages and
// reports those that should not be in it.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/romangod6/sitemapper/internal/crawler"
	"github.com/romangod6/sitemapper/internal/sitemap"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

type auditOptions struct {
	Samples   int
	Interval  time.Duration
	UserAgent string
}

// Finding is one problem found on a sampled page.
type Finding struct {
	URL     string
	Problem string
}

type Report struct {
	Sitemaps int
	URLs     int
	Sampled  int
	Invalid  int
	Findings []Finding
}

func main() {
	var opts auditOptions

	cmd := &cobra.Command{
		Use:   "sitemap <sitemap-url>",
		Short: "Audit the pages listed in a sitemap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := audit(cmd.Context(), &http.Client{Timeout: 30 * time.Second}, args[0], opts)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Samples, "samples", "n", 3, "number of pages to fetch (0 for all)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "minimum time between page requests")
	cmd.Flags().StringVar(&opts.UserAgent, "user-agent", "Sitemapper Audit v1.0", "User-Agent header")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func audit(ctx context.Context, client *http.Client, sitemapURL string, opts auditOptions) (*Report, error) {
	report := &Report{}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}

	entries, err := collectEntries(ctx, client, sitemapURL, opts.UserAgent, report)
	if err != nil {
		return nil, err
	}
	report.URLs = len(entries)

	for i, entry := range entries {
		if opts.Samples > 0 && i >= opts.Samples {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}
		report.Sampled++
		for _, problem := range checkPage(ctx, client, entry.Loc, opts.UserAgent) {
			report.Findings = append(report.Findings, Finding{URL: entry.Loc, Problem: problem})
		}
	}
	return report, nil
}

// collectEntries reads a urlset, or every urlset referenced by an index.
func collectEntries(ctx context.Context, client *http.Client, sitemapURL, userAgent string, report *Report) ([]sitemap.Entry, error) {
	set, idx, err := fetchSitemap(ctx, client, sitemapURL, userAgent)
	if err != nil {
		return nil, fmt.Errorf("error fetching sitemap %s: %w", sitemapURL, err)
	}

	var sets []*sitemap.URLSet
	if set != nil {
		sets = append(sets, set)
	} else {
		for _, ref := range idx.Sitemaps {
			child, _, err := fetchSitemap(ctx, client, ref.Loc, userAgent)
			if err != nil {
				report.Findings = append(report.Findings, Finding{URL: ref.Loc, Problem: err.Error()})
				continue
			}
			if child != nil {
				sets = append(sets, child)
			}
		}
	}
	report.Sitemaps = len(sets)

	var entries []sitemap.Entry
	for _, s := range sets {
		for _, u := range s.URLs {
			entry, err := u.ToEntry()
			if err != nil {
				report.Invalid++
				report.Findings = append(report.Findings, Finding{URL: u.Loc, Problem: err.Error()})
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func checkPage(ctx context.Context, client *http.Client, pageURL, userAgent string) []string {
	resp, err := get(ctx, client, pageURL, userAgent)
	if err != nil {
		return []string{err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return []string{fmt.Sprintf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []string{err.Error()}
	}

	info, err := crawler.ParseHTMLContent(string(body), resp.Header)
	if err != nil {
		return []string{err.Error()}
	}

	var problems []string
	if info.NoIndex {
		problems = append(problems, "marked noindex")
	}
	if info.Canonical != "" {
		if canonical := resolve(pageURL, info.Canonical); canonical != pageURL {
			problems = append(problems, "canonical points to "+canonical)
		}
	}
	if info.Title == "" {
		problems = append(problems, "missing title")
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		if n := countElements(doc, "h1"); n > 1 {
			problems = append(problems, fmt.Sprintf("%d h1 elements", n))
		}
	}
	return problems
}

func countElements(n *html.Node, tag string) int {
	count := 0
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return count
}

func fetchSitemap(ctx context.Context, client *http.Client, sitemapURL, userAgent string) (*sitemap.URLSet, *sitemap.IndexSet, error) {
	resp, err := get(ctx, client, sitemapURL, userAgent)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return sitemap.Parse(resp.Body)
}

func get(ctx context.Context, client *http.Client, target, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return client.Do(req)
}

func resolve(pageURL, ref string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Sitemaps read: %d\n", r.Sitemaps)
	fmt.Fprintf(w, "Total URLs found: %d (%d invalid)\n", r.URLs, r.Invalid)
	fmt.Fprintf(w, "Pages sampled: %d\n\n", r.Sampled)
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No problems found")
		return
	}
	fmt.Fprintln(w, "--- Findings ---")
	for _, f := range r.Findings {
		fmt.Fprintf(w, "%s\n  %s\n", f.URL, strings.TrimSpace(f.Problem))
	}
}
