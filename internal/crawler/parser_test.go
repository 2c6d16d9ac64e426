package crawler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHTMLContent(t *testing.T) {
	html := `<html><head>
<title> Getting Started </title>
<link rel="canonical" href="https://example.com/start">
<meta property="article:modified_time" content="2024-01-10T08:00:00Z">
</head><body>
<a href="/docs">Docs</a>
<a href="#top">Top</a>
<a href="mailto:team@example.com">Mail</a>
<a href="/login" rel="nofollow">Login</a>
<a href="javascript:void(0);">Menu</a>
</body></html>`

	info, err := ParseHTMLContent(html, nil)
	require.NoError(t, err)

	assert.Equal(t, "Getting Started", info.Title)
	assert.Equal(t, "https://example.com/start", info.Canonical)
	assert.False(t, info.NoIndex)
	assert.Equal(t, time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), info.ModifiedAt.UTC())
	assert.Equal(t, []string{"/docs"}, info.Links)
}

func TestParseRobotsDirectives(t *testing.T) {
	info, err := ParseHTMLContent(`<html><head><meta name="robots" content="noindex, nofollow"></head></html>`, nil)
	require.NoError(t, err)
	assert.True(t, info.NoIndex)
	assert.True(t, info.NoFollow)

	info, err = ParseHTMLContent(`<html><head><meta name="robots" content="none"></head></html>`, nil)
	require.NoError(t, err)
	assert.True(t, info.NoIndex)
	assert.True(t, info.NoFollow)

	header := http.Header{}
	header.Set("X-Robots-Tag", "noindex")
	info, err = ParseHTMLContent(`<html><body>ok</body></html>`, header)
	require.NoError(t, err)
	assert.True(t, info.NoIndex)
	assert.False(t, info.NoFollow)
}

func TestParseTitleFallbacks(t *testing.T) {
	info, err := ParseHTMLContent(`<html><head><meta property="og:title" content="From OG"></head></html>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "From OG", info.Title)

	info, err = ParseHTMLContent(`<html><body><h1>  Main
  heading </h1></body></html>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "Main heading", info.Title)
}

func TestParseLastModifiedHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Last-Modified", "Wed, 21 Feb 2024 07:28:00 GMT")

	info, err := ParseHTMLContent(`<html></html>`, header)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 21, 7, 28, 0, 0, time.UTC), info.ModifiedAt.UTC())
}

func TestPriorityForPath(t *testing.T) {
	cases := map[string]float64{
		"/":                 1.0,
		"/about":            0.8,
		"/docs/intro":       0.6,
		"/a/b/c/d":          0.2,
		"/a/b/c/d/e/f":      0.1,
		"/search?q=a/b/c/d": 0.8,
	}
	for path, want := range cases {
		assert.InDelta(t, want, priorityForPath(path), 1e-9, path)
	}
}
