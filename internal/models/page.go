package models

import (
	"time"

	"github.com/google/uuid"
)

// NewPage creates a new page with generated UUID and timestamps
func NewPage(siteID uuid.UUID, path string) *Page {
	now := time.Now()
	return &Page{
		ID:        uuid.New(),
		SiteID:    siteID,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
