// Package metrics exposes Prometheus counters for crawls and sitemap rendering.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	registry       *prom.Registry
	crawls         *prom.CounterVec
	crawlDuration  prom.Histogram
	pagesRecorded  prom.Counter
	pagesSkipped   *prom.CounterVec
	renders        *prom.CounterVec
	renderDuration prom.Histogram
	cacheHits      prom.Counter
}

func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		registry: reg,
		crawls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitemapper",
			Name:      "crawls_total",
			Help:      "Crawl runs by outcome",
		}, []string{"outcome"}),
		crawlDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitemapper",
			Name:      "crawl_duration_seconds",
			Help:      "Duration of crawl runs",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}),
		pagesRecorded: prom.NewCounter(prom.CounterOpts{
			Namespace: "sitemapper",
			Name:      "pages_recorded_total",
			Help:      "Pages stored by crawls",
		}),
		pagesSkipped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitemapper",
			Name:      "pages_skipped_total",
			Help:      "Pages seen but left out of the sitemap",
		}, []string{"reason"}),
		renders: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitemapper",
			Name:      "sitemap_renders_total",
			Help:      "Sitemap documents rendered by kind",
		}, []string{"kind"}),
		renderDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitemapper",
			Name:      "sitemap_render_duration_seconds",
			Help:      "Time spent building and rendering sitemaps",
			Buckets:   prom.DefBuckets,
		}),
		cacheHits: prom.NewCounter(prom.CounterOpts{
			Namespace: "sitemapper",
			Name:      "sitemap_cache_hits_total",
			Help:      "Sitemap requests served from cache",
		}),
	}
	reg.MustRegister(r.crawls, r.crawlDuration, r.pagesRecorded, r.pagesSkipped, r.renders, r.renderDuration, r.cacheHits)
	return r
}

func (r *Recorder) ObserveCrawl(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.crawls.WithLabelValues(outcome).Inc()
	r.crawlDuration.Observe(d.Seconds())
}

func (r *Recorder) PageRecorded() {
	if r == nil {
		return
	}
	r.pagesRecorded.Inc()
}

func (r *Recorder) PageSkipped(reason string) {
	if r == nil {
		return
	}
	r.pagesSkipped.WithLabelValues(reason).Inc()
}

func (r *Recorder) ObserveRender(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.renders.WithLabelValues(kind).Inc()
	r.renderDuration.Observe(d.Seconds())
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
