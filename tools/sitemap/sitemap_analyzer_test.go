package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>http://%[1]s/sitemap-1.xml</loc></sitemap>
</sitemapindex>`, r.Host)
	})
	mux.HandleFunc("/sitemap-1.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>http://%[1]s/good</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc>http://%[1]s/hidden</loc></url>
  <url><loc>http://%[1]s/copy</loc></url>
  <url><loc>http://%[1]s/gone</loc></url>
  <url><loc>http://%[1]s/bad</loc><priority>2.0</priority></url>
</urlset>`, r.Host)
	})
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Good</title></head><body><h1>Good</h1></body></html>`)
	})
	mux.HandleFunc("/hidden", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Hidden</title><meta name="robots" content="noindex"></head><body><h1>a</h1><h1>b</h1></body></html>`)
	})
	mux.HandleFunc("/copy", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Copy</title><link rel="canonical" href="/good"></head></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAudit(t *testing.T) {
	srv := newAuditServer(t)

	report, err := audit(context.Background(), srv.Client(), srv.URL+"/sitemap.xml", auditOptions{UserAgent: "test"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sitemaps)
	assert.Equal(t, 4, report.URLs)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 4, report.Sampled)

	problems := map[string][]string{}
	for _, f := range report.Findings {
		problems[f.URL] = append(problems[f.URL], f.Problem)
	}
	assert.NotContains(t, problems, srv.URL+"/good")
	assert.ElementsMatch(t, []string{"marked noindex", "2 h1 elements"}, problems[srv.URL+"/hidden"])
	assert.Equal(t, []string{"canonical points to " + srv.URL + "/good"}, problems[srv.URL+"/copy"])
	assert.Equal(t, []string{"status 404"}, problems[srv.URL+"/gone"])
	assert.Len(t, problems[srv.URL+"/bad"], 1)
}

func TestAuditSampleLimit(t *testing.T) {
	srv := newAuditServer(t)

	report, err := audit(context.Background(), srv.Client(), srv.URL+"/sitemap.xml", auditOptions{Samples: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sampled)

	var buf bytes.Buffer
	printReport(&buf, report)
	assert.Contains(t, buf.String(), "Total URLs found: 4 (1 invalid)")
}

func TestAuditMissingSitemap(t *testing.T) {
	srv := newAuditServer(t)
	_, err := audit(context.Background(), srv.Client(), srv.URL+"/nope.xml", auditOptions{})
	assert.Error(t, err)
}
