package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.ObserveCrawl("success", 2*time.Second)
	r.ObserveCrawl("error", time.Second)
	r.PageRecorded()
	r.PageRecorded()
	r.PageSkipped("noindex")
	r.ObserveRender("urlset", time.Millisecond)
	r.CacheHit()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.crawls.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.pagesRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pagesSkipped.WithLabelValues("noindex")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.renders.WithLabelValues("urlset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheHits))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveCrawl("success", time.Second)
		r.PageRecorded()
		r.PageSkipped("robots")
		r.ObserveRender("index", time.Second)
		r.CacheHit()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder(nil)
	r.PageRecorded()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sitemapper_pages_recorded_total")
}
