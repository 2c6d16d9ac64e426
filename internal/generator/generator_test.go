package generator

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/romangod6/sitemapper/internal/models"
	"github.com/romangod6/sitemapper/internal/sitemap"
	"github.com/romangod6/sitemapper/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, paths ...string) (storage.Store, *models.Site) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "gen.db"))
	require.NoError(t, err)
	require.NoError(t, store.Initialize())
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	site := models.NewSite("docs", "https://example.com")
	require.NoError(t, store.CreateSite(ctx, site))

	for i, p := range paths {
		page := models.NewPage(site.ID, p)
		page.ChangeFreq = "daily"
		page.Priority = 0.5
		page.LastModified = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpsertPage(ctx, page))
	}
	return store, site
}

func TestBuildSingleDocument(t *testing.T) {
	store, site := setup(t, "/", "/about")
	g := New(store, WithClock(func() time.Time { return fixedNow }))

	files, err := g.Build(context.Background(), site, Layout{})
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, IndexFile, f.Name)
	assert.False(t, f.Index)
	assert.Equal(t, 2, f.URLs)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://example.com/</loc>
    <lastmod>2024-01-01</lastmod>
    <changefreq>daily</changefreq>
    <priority>0.5</priority>
  </url>
  <url>
    <loc>https://example.com/about</loc>
    <lastmod>2024-01-02</lastmod>
    <changefreq>daily</changefreq>
    <priority>0.5</priority>
  </url>
</urlset>
`
	assert.Equal(t, want, string(f.Data))
}

func TestBuildEmptySite(t *testing.T) {
	store, site := setup(t)
	files, err := New(store).Build(context.Background(), site, Layout{})
	require.NoError(t, err)
	require.Len(t, files, 1)

	set, idx, err := sitemap.Parse(bytes.NewReader(files[0].Data))
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Empty(t, set.URLs)
}

func TestBuildSplitsIntoIndex(t *testing.T) {
	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, fmt.Sprintf("/p%d", i))
	}
	store, site := setup(t, paths...)
	g := New(store, WithMaxURLs(2))

	files, err := g.Build(context.Background(), site, Layout{BaseLoc: "https://cdn.example.com/maps/"})
	require.NoError(t, err)
	require.Len(t, files, 4)

	assert.True(t, files[0].Index)
	assert.Equal(t, 3, files[0].URLs)
	_, idx, err := sitemap.Parse(bytes.NewReader(files[0].Data))
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Len(t, idx.Sitemaps, 3)
	assert.Equal(t, "https://cdn.example.com/maps/sitemap-1.xml", idx.Sitemaps[0].Loc)
	assert.Equal(t, "2024-01-02", idx.Sitemaps[0].LastMod)
	assert.Equal(t, "https://cdn.example.com/maps/sitemap-3.xml", idx.Sitemaps[2].Loc)
	assert.Equal(t, "2024-01-05", idx.Sitemaps[2].LastMod)

	var locs []string
	for _, f := range files[1:] {
		set, _, err := sitemap.Parse(bytes.NewReader(f.Data))
		require.NoError(t, err)
		for _, u := range set.URLs {
			locs = append(locs, u.Loc)
		}
	}
	assert.Equal(t, []string{
		"https://example.com/p0", "https://example.com/p1", "https://example.com/p2",
		"https://example.com/p3", "https://example.com/p4",
	}, locs)

	last, err := Lookup(files, "sitemap-3.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, 1, last.URLs)

	_, err = Lookup(files, "sitemap-9.xml")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestBuildRejectsInvalidStoredPage(t *testing.T) {
	store, site := setup(t, "/")
	page := models.NewPage(site.ID, "/bad")
	page.ChangeFreq = "fortnightly"
	page.Priority = 0.5
	require.NoError(t, store.UpsertPage(context.Background(), page))

	_, err := New(store).Build(context.Background(), site, Layout{})
	assert.ErrorIs(t, err, sitemap.ErrInvalidArgument)
}

func TestWriteFilesGzip(t *testing.T) {
	store, site := setup(t, "/a", "/b", "/c")
	g := New(store, WithMaxURLs(2))
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := g.WriteFiles(context.Background(), site, dir, Layout{Gzip: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "sitemap.xml"),
		filepath.Join(dir, "sitemap-1.xml.gz"),
		filepath.Join(dir, "sitemap-2.xml.gz"),
	}, paths)

	index, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(index), "<loc>https://example.com/sitemap-2.xml.gz</loc>")

	fh, err := os.Open(paths[2])
	require.NoError(t, err)
	defer fh.Close()
	zr, err := gzip.NewReader(fh)
	require.NoError(t, err)
	set, _, err := sitemap.Parse(zr)
	require.NoError(t, err)
	require.Len(t, set.URLs, 1)
	assert.Equal(t, "https://example.com/c", set.URLs[0].Loc)
}
