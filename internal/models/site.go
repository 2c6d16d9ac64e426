package models

import (
	"time"

	"github.com/google/uuid"
)

// NewSite creates a new idle site with generated UUID and timestamps
func NewSite(name, baseURL string) *Site {
	now := time.Now()
	return &Site{
		ID:        uuid.New(),
		Name:      name,
		BaseURL:   baseURL,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CrawlDuration parses CrawlInterval, returning fallback when it is unset or invalid.
func (s *Site) CrawlDuration(fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s.CrawlInterval)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Due reports whether a scheduled crawl should start at now.
func (s *Site) Due(now time.Time) bool {
	if s.Status == StatusRunning {
		return false
	}
	return s.NextRun == nil || !now.Before(*s.NextRun)
}

// EntryPoint is where a crawl begins.
func (s *Site) EntryPoint() string {
	if s.StartURL != "" {
		return s.StartURL
	}
	return s.BaseURL + "/"
}
