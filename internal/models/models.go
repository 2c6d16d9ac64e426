package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusIdle      = "Idle"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusError     = "Error"
)

type Site struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	BaseURL        string     `json:"baseUrl"`
	StartURL       string     `json:"startUrl"`
	SitemapURL     string     `json:"sitemapUrl,omitempty"`
	UserAgent      string     `json:"userAgent"`
	CrawlInterval  string     `json:"crawlInterval"`
	MaxDepth       int        `json:"maxDepth"`
	AllowedDomains []string   `json:"allowedDomains"`
	RespectRobots  bool       `json:"respectRobots"`
	Status         string     `json:"status"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	NextRun        *time.Time `json:"nextRun,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type Page struct {
	ID           uuid.UUID `json:"id"`
	SiteID       uuid.UUID `json:"siteId"`
	Path         string    `json:"path"`
	Title        string    `json:"title,omitempty"`
	LastModified time.Time `json:"lastModified"`
	ChangeFreq   string    `json:"changeFrequency"`
	Priority     float64   `json:"priority"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
