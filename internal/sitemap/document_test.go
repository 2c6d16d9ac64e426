package sitemap

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNew(t *testing.T) {
	t.Run("empty base URL", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("relative base URL", func(t *testing.T) {
		_, err := New("example.com")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("valid base URL", func(t *testing.T) {
		doc, err := New("https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", doc.BaseURL())
		assert.Zero(t, doc.Len())
	})
}

func TestAddEntryExplicitValues(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)

	lastMod := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	require.NoError(t, doc.AddEntry("/about",
		WithLastModified(lastMod),
		WithChangeFreq(Monthly),
		WithPriority(0.8),
	))

	out := doc.String()
	assert.Contains(t, out, "<loc>https://example.com/about</loc>")
	assert.Contains(t, out, "<lastmod>2024-01-10</lastmod>")
	assert.Contains(t, out, "<changefreq>monthly</changefreq>")
	assert.Contains(t, out, "<priority>0.8</priority>")
}

func TestAddEntryDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	doc, err := New("https://example.com", WithClock(fixedClock(now)))
	require.NoError(t, err)

	require.NoError(t, doc.AddEntry("/x"))

	entries := doc.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, now, entries[0].LastModified)
	assert.Equal(t, Weekly, entries[0].ChangeFreq)
	assert.Equal(t, 0.5, entries[0].Priority)

	out := doc.String()
	assert.Contains(t, out, "<lastmod>2025-06-01</lastmod>")
	assert.Contains(t, out, "<changefreq>weekly</changefreq>")
	assert.Contains(t, out, "<priority>0.5</priority>")
}

func TestAddEntryRejectsInvalidPriority(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)
	require.NoError(t, doc.AddEntry("/ok"))

	for _, p := range []float64{1.5, -0.1} {
		err := doc.AddEntry("/bad", WithPriority(p))
		assert.ErrorIs(t, err, ErrInvalidArgument, "priority %v", p)
		assert.Equal(t, 1, doc.Len())
	}
}

func TestAddEntryBoundaryPriorities(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)

	require.NoError(t, doc.AddEntry("/zero", WithPriority(0)))
	require.NoError(t, doc.AddEntry("/one", WithPriority(1)))
	require.NoError(t, doc.AddEntry("/negzero", WithPriority(math.Copysign(0, -1))))

	out := doc.String()
	assert.Contains(t, out, "<priority>0.0</priority>")
	assert.Contains(t, out, "<priority>1.0</priority>")
	assert.NotContains(t, out, "-0.0")
	assert.Equal(t, 2, strings.Count(out, "<priority>0.0</priority>"))
	assert.False(t, math.Signbit(doc.Entries()[2].Priority))
}

func TestAddEntryRejectsUnknownChangeFreq(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)

	err = doc.AddEntry("/x", WithChangeFreq(ChangeFreq("fortnightly")))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, doc.Len())
}

func TestRenderPreservesOrderAndDuplicates(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)

	paths := []string{"/c", "/a", "/b", "/a"}
	for _, p := range paths {
		require.NoError(t, doc.AddEntry(p))
	}

	out := doc.String()
	assert.Equal(t, len(paths), strings.Count(out, "<url>"))

	last := -1
	rest := out
	offset := 0
	for _, p := range paths {
		loc := "<loc>https://example.com" + p + "</loc>"
		idx := strings.Index(rest, loc)
		require.GreaterOrEqual(t, idx, 0, "missing %s", loc)
		pos := offset + idx
		assert.Greater(t, pos, last)
		last = pos
		offset = pos + len(loc)
		rest = out[offset:]
	}
}

func TestRenderExactFormat(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)
	require.NoError(t, doc.AddEntry("/about",
		WithLastModified(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
		WithChangeFreq(Monthly),
		WithPriority(0.8),
	))

	expected := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://example.com/about</loc>
    <lastmod>2024-01-10</lastmod>
    <changefreq>monthly</changefreq>
    <priority>0.8</priority>
  </url>
</urlset>
`
	assert.Equal(t, expected, doc.String())
}

func TestRenderEmptyDocument(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)

	out := doc.String()
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`)
	assert.NotContains(t, out, "<url>")

	set, idx, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Empty(t, set.URLs)
}

func TestRenderIsDeterministic(t *testing.T) {
	doc, err := New("https://example.com", WithClock(fixedClock(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	require.NoError(t, doc.AddEntry("/a"))
	require.NoError(t, doc.AddEntry("/b?q=1&r=2", WithPriority(0.25)))

	first, err := doc.Render()
	require.NoError(t, err)
	second, err := doc.Render()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "<loc>https://example.com/b?q=1&amp;r=2</loc>")
	assert.Contains(t, string(first), "<priority>0.25</priority>")
}

func TestRenderConcurrentReaders(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, doc.AddEntry("/p"))
	}
	want := doc.String()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, doc.String())
		}()
	}
	wg.Wait()
}

func TestWriteTo(t *testing.T) {
	doc, err := New("https://example.com")
	require.NoError(t, err)
	require.NoError(t, doc.AddEntry("/"))

	var sb strings.Builder
	n, err := doc.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(sb.Len()), n)
	assert.Equal(t, doc.String(), sb.String())
}

func TestFormatPriority(t *testing.T) {
	cases := map[float64]string{
		0:    "0.0",
		0.5:  "0.5",
		1:    "1.0",
		0.25: "0.25",
		0.1:  "0.1",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatPriority(in))
	}
}

func TestParseChangeFreq(t *testing.T) {
	c, err := ParseChangeFreq(" Daily ")
	require.NoError(t, err)
	assert.Equal(t, Daily, c)

	_, err = ParseChangeFreq("sometimes")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
