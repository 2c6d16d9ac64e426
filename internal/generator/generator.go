// Package generator turns a site's stored pages into sitemap files.
package generator

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/romangod6/sitemapper/internal/metrics"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/sitemap"
	"github.com/romangod6/sitemapper/internal/storage"
)

// IndexFile is the entry point of every generated set: either the only
// urlset or the sitemapindex pointing at the numbered chunks.
const IndexFile = "sitemap.xml"

var ErrFileNotFound = errors.New("sitemap file not found")

// File is one generated sitemap document.
type File struct {
	Name  string
	Data  []byte
	Index bool
	URLs  int
}

// Layout describes where the generated files will be published.
type Layout struct {
	// BaseLoc is the absolute URL the files are reachable under.
	// Empty means the site's base URL.
	BaseLoc string
	// Gzip appends .gz to chunk names referenced from the index.
	Gzip bool
}

type Generator struct {
	store   storage.Store
	metrics *metrics.Recorder
	now     func() time.Time
	maxURLs int
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithMaxURLs caps the entries per document. Values outside
// (0, sitemap.MaxURLs] fall back to the protocol limit.
func WithMaxURLs(n int) Option {
	return func(g *Generator) {
		g.maxURLs = n
	}
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(g *Generator) {
		g.metrics = rec
	}
}

func New(store storage.Store, opts ...Option) *Generator {
	g := &Generator{
		store:   store,
		now:     time.Now,
		maxURLs: sitemap.MaxURLs,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.maxURLs <= 0 || g.maxURLs > sitemap.MaxURLs {
		g.maxURLs = sitemap.MaxURLs
	}
	return g
}

// Build renders every sitemap file for site. Sites with at most maxURLs
// pages produce a single urlset; larger ones produce numbered chunks
// plus an index under IndexFile.
func (g *Generator) Build(ctx context.Context, site *models.Site, layout Layout) ([]File, error) {
	started := time.Now()

	pages, err := g.store.AllPages(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}

	if len(pages) <= g.maxURLs {
		doc, err := g.document(site, pages)
		if err != nil {
			return nil, err
		}
		data, err := doc.Render()
		if err != nil {
			return nil, err
		}
		g.metrics.ObserveRender("urlset", time.Since(started))
		return []File{{Name: IndexFile, Data: data, URLs: doc.Len()}}, nil
	}

	baseLoc := strings.TrimSuffix(layout.BaseLoc, "/")
	if baseLoc == "" {
		baseLoc = site.BaseURL
	}

	index := sitemap.NewIndex()
	files := []File{{Name: IndexFile, Index: true}}
	for n, start := 1, 0; start < len(pages); n, start = n+1, start+g.maxURLs {
		end := min(start+g.maxURLs, len(pages))
		doc, err := g.document(site, pages[start:end])
		if err != nil {
			return nil, err
		}
		data, err := doc.Render()
		if err != nil {
			return nil, err
		}

		name := ChunkName(n)
		loc := baseLoc + "/" + name
		if layout.Gzip {
			loc += ".gz"
		}
		if err := index.Add(loc, sitemap.LatestModification(doc.Entries())); err != nil {
			return nil, err
		}
		files = append(files, File{Name: name, Data: data, URLs: doc.Len()})
	}

	data, err := index.Render()
	if err != nil {
		return nil, err
	}
	files[0].Data = data
	files[0].URLs = index.Len()
	g.metrics.ObserveRender("index", time.Since(started))
	return files, nil
}

// Render builds the set for site and returns the file called name.
func (g *Generator) Render(ctx context.Context, site *models.Site, layout Layout, name string) (File, error) {
	files, err := g.Build(ctx, site, layout)
	if err != nil {
		return File{}, err
	}
	return Lookup(files, name)
}

// WriteFiles writes the set for site into dir and returns the written paths.
func (g *Generator) WriteFiles(ctx context.Context, site *models.Site, dir string, layout Layout) ([]string, error) {
	files, err := g.Build(ctx, site, layout)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if layout.Gzip && !f.Index {
			path += ".gz"
			err = writeGzip(path, f.Data)
		} else {
			err = os.WriteFile(path, f.Data, 0644)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *Generator) document(site *models.Site, pages []*models.Page) (*sitemap.Document, error) {
	doc, err := sitemap.New(site.BaseURL, sitemap.WithClock(g.now))
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		opts, err := entryOptions(page)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", page.Path, err)
		}
		if err := doc.AddEntry(page.Path, opts...); err != nil {
			return nil, fmt.Errorf("page %s: %w", page.Path, err)
		}
	}
	return doc, nil
}

func entryOptions(page *models.Page) ([]sitemap.EntryOption, error) {
	opts := []sitemap.EntryOption{sitemap.WithPriority(page.Priority)}
	if page.ChangeFreq != "" {
		cf, err := sitemap.ParseChangeFreq(page.ChangeFreq)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sitemap.WithChangeFreq(cf))
	}
	if !page.LastModified.IsZero() {
		opts = append(opts, sitemap.WithLastModified(page.LastModified))
	}
	return opts, nil
}

// ChunkName is the file name of the n-th (1-based) chunk of a split set.
func ChunkName(n int) string {
	return fmt.Sprintf("sitemap-%d.xml", n)
}

// Lookup finds name among files. A trailing .gz is ignored.
func Lookup(files []File, name string) (File, error) {
	name = strings.TrimSuffix(name, ".gz")
	for _, f := range files {
		if f.Name == name {
			return f, nil
		}
	}
	return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, name)
}

func writeGzip(path string, data []byte) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := zw.Write(data); err != nil {
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
