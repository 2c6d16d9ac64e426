package sitemap

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLSet(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><lastmod>2024-02-01T10:00:00+00:00</lastmod><priority>1.0</priority></url>
  <url><loc>https://example.com/docs</loc><changefreq>Daily</changefreq></url>
</urlset>`

	set, idx, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	require.Nil(t, idx)
	require.Len(t, set.URLs, 2)

	first, err := set.URLs[0].ToEntry()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", first.Loc)
	assert.Equal(t, 1.0, first.Priority)
	assert.Equal(t, Weekly, first.ChangeFreq)
	assert.True(t, first.LastModified.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)))

	second, err := set.URLs[1].ToEntry()
	require.NoError(t, err)
	assert.Equal(t, Daily, second.ChangeFreq)
	assert.Equal(t, DefaultPriority, second.Priority)
	assert.True(t, second.LastModified.IsZero())
}

func TestParseIndex(t *testing.T) {
	body := `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-2.xml</loc><lastmod>2024-01-01</lastmod></sitemap>
</sitemapindex>`

	set, idx, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	require.Nil(t, set)
	require.Len(t, idx.Sitemaps, 2)
	assert.Equal(t, "https://example.com/sitemap-2.xml", idx.Sitemaps[1].Loc)
}

func TestParseRejectsOtherDocuments(t *testing.T) {
	_, _, err := Parse(strings.NewReader(`<rss><channel/></rss>`))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = Parse(strings.NewReader(``))
	assert.Error(t, err)
}

func TestToEntryRejectsBadFields(t *testing.T) {
	_, err := URL{Loc: "/relative"}.ToEntry()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = URL{Loc: "https://example.com/", Priority: "2"}.ToEntry()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = URL{Loc: "https://example.com/", Priority: "NaN"}.ToEntry()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = URL{Loc: "https://example.com/", LastMod: "yesterday"}.ToEntry()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRenderParseRoundTrip(t *testing.T) {
	doc, err := New("https://example.com", WithClock(fixedClock(time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	require.NoError(t, doc.AddEntry("/a", WithChangeFreq(Hourly), WithPriority(0.9)))

	b, err := doc.Render()
	require.NoError(t, err)

	set, _, err := Parse(strings.NewReader(string(b)))
	require.NoError(t, err)
	require.Len(t, set.URLs, 1)
	assert.Equal(t, Namespace, set.Xmlns)
	assert.Equal(t, URL{
		Loc:        "https://example.com/a",
		LastMod:    "2024-05-05",
		ChangeFreq: "hourly",
		Priority:   "0.9",
	}, set.URLs[0])
}
