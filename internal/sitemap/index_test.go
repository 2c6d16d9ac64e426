package sitemap

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRender(t *testing.T) {
	idx := NewIndex()
	require.NoError(t, idx.Add("https://example.com/sitemap-1.xml", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, idx.Add("https://example.com/sitemap-2.xml", time.Time{}))
	assert.ErrorIs(t, idx.Add("sitemap-3.xml", time.Time{}), ErrInvalidArgument)
	assert.Equal(t, 2, idx.Len())

	b, err := idx.Render()
	require.NoError(t, err)
	expected := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap>
    <loc>https://example.com/sitemap-1.xml</loc>
    <lastmod>2024-01-02</lastmod>
  </sitemap>
  <sitemap>
    <loc>https://example.com/sitemap-2.xml</loc>
  </sitemap>
</sitemapindex>
`
	assert.Equal(t, expected, string(b))

	_, parsed, err := Parse(strings.NewReader(string(b)))
	require.NoError(t, err)
	assert.Len(t, parsed.Sitemaps, 2)
}

func TestSplit(t *testing.T) {
	entries := make([]Entry, 5)
	for i := range entries {
		entries[i].Loc = "https://example.com/" + string(rune('a'+i))
	}

	chunks := Split(entries, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, "https://example.com/e", chunks[2][0].Loc)

	assert.Len(t, Split(entries, 0), 1)
	assert.Empty(t, Split(nil, 10))
}

func TestLatestModification(t *testing.T) {
	older := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := LatestModification([]Entry{{LastModified: older}, {LastModified: newer}})
	assert.Equal(t, newer, got)
}
