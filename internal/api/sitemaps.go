package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/romangod6/sitemapper/internal/generator"
	"github.com/romangod6/sitemapper/internal/models"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

type cachedSet struct {
	baseLoc string
	files   []generator.File
	etags   map[string]string
}

// ServeSitemap serves sitemap.xml and its numbered chunks for a site.
// Rendered sets are cached until the site's pages change.
func (h *Handler) ServeSitemap(c *gin.Context) {
	site, ok := h.loadSite(c)
	if !ok {
		return
	}

	name := c.Param("file")
	baseLoc := h.sitemapLocation(c, site.ID)

	set, err := h.sitemapSet(c, site, baseLoc)
	if err != nil {
		h.logger.Error("Failed to render sitemap", zap.Stringer("site", site.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to render sitemap"})
		return
	}

	// Compressed chunks only exist as generated files.
	file, err := generator.Lookup(set.files, name)
	if err != nil || strings.HasSuffix(name, ".gz") {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Sitemap not found"})
		return
	}

	etag := set.etags[file.Name]
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=300")
	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, etag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", file.Data)
}

func (h *Handler) sitemapSet(c *gin.Context, site *models.Site, baseLoc string) (*cachedSet, error) {
	if v, found := h.cache.Get(site.ID.String()); found {
		if set := v.(*cachedSet); set.baseLoc == baseLoc {
			h.metrics.CacheHit()
			return set, nil
		}
	}

	files, err := h.generator.Build(c.Request.Context(), site, generator.Layout{BaseLoc: baseLoc})
	if err != nil {
		return nil, err
	}

	set := &cachedSet{
		baseLoc: baseLoc,
		files:   files,
		etags:   make(map[string]string, len(files)),
	}
	for _, f := range files {
		set.etags[f.Name] = fmt.Sprintf(`"%016x"`, xxh3.Hash(f.Data))
	}
	h.cache.Set(site.ID.String(), set, cache.DefaultExpiration)
	return set, nil
}

func (h *Handler) invalidate(id uuid.UUID) {
	h.cache.Delete(id.String())
}

func (h *Handler) sitemapLocation(c *gin.Context, id uuid.UUID) string {
	origin := h.publicURL
	if origin == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		origin = scheme + "://" + c.Request.Host
	}
	return origin + "/sitemaps/" + id.String()
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
