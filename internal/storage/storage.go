package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapper/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	Initialize() error
	Close() error

	// Site operations
	CreateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)
	UpdateSite(ctx context.Context, site *models.Site) error
	DeleteSite(ctx context.Context, id uuid.UUID) error

	// Page operations
	UpsertPage(ctx context.Context, page *models.Page) error
	ListPages(ctx context.Context, siteID uuid.UUID, limit, offset int) ([]*models.Page, error)
	AllPages(ctx context.Context, siteID uuid.UUID) ([]*models.Page, error)
	CountPages(ctx context.Context, siteID uuid.UUID) (int, error)
	DeletePage(ctx context.Context, siteID uuid.UUID, path string) error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs
// go to Postgres, anything else is treated as a SQLite path.
func Open(dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresStore(dsn)
	}
	return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
}
