package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/romangod6/sitemapper/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sites (
            id UUID PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            base_url VARCHAR(2048) NOT NULL,
            start_url VARCHAR(2048),
            sitemap_url VARCHAR(2048),
            user_agent VARCHAR(255),
            crawl_interval VARCHAR(64),
            max_depth INTEGER NOT NULL DEFAULT 0,
            allowed_domains TEXT[],
            respect_robots BOOLEAN NOT NULL DEFAULT TRUE,
            status VARCHAR(32) NOT NULL,
            last_run TIMESTAMP,
            next_run TIMESTAMP,
            errors TEXT[],
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS pages (
            seq BIGSERIAL,
            id UUID PRIMARY KEY,
            site_id UUID NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
            path VARCHAR(2048) NOT NULL,
            title TEXT,
            last_modified TIMESTAMPTZ NOT NULL,
            change_freq VARCHAR(16) NOT NULL,
            priority DOUBLE PRECISION NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (site_id, path)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pages_site_seq ON pages(site_id, seq)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

func (s *PostgresStore) CreateSite(ctx context.Context, site *models.Site) error {
	query := `
        INSERT INTO sites (id, name, base_url, start_url, sitemap_url, user_agent, crawl_interval, max_depth,
            allowed_domains, respect_robots, status, last_run, next_run, errors, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `

	_, err := s.db.ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.BaseURL,
		site.StartURL,
		site.SitemapURL,
		site.UserAgent,
		site.CrawlInterval,
		site.MaxDepth,
		pq.Array(site.AllowedDomains),
		site.RespectRobots,
		site.Status,
		site.LastRun,
		site.NextRun,
		pq.Array(site.Errors),
		site.CreatedAt,
		site.UpdatedAt,
	)

	return err
}

const pgSiteColumns = `id, name, base_url, start_url, sitemap_url, user_agent, crawl_interval, max_depth,
        allowed_domains, respect_robots, status, last_run, next_run, errors, created_at, updated_at`

func (s *PostgresStore) GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	query := `SELECT ` + pgSiteColumns + ` FROM sites WHERE id = $1`

	site, err := scanPgSite(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return site, nil
}

func (s *PostgresStore) ListSites(ctx context.Context) ([]*models.Site, error) {
	query := `SELECT ` + pgSiteColumns + ` FROM sites ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		site, err := scanPgSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

func (s *PostgresStore) UpdateSite(ctx context.Context, site *models.Site) error {
	query := `
        UPDATE sites SET
            name = $2, base_url = $3, start_url = $4, sitemap_url = $5, user_agent = $6, crawl_interval = $7,
            max_depth = $8, allowed_domains = $9, respect_robots = $10, status = $11, last_run = $12,
            next_run = $13, errors = $14, updated_at = $15
        WHERE id = $1
    `

	res, err := s.db.ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.BaseURL,
		site.StartURL,
		site.SitemapURL,
		site.UserAgent,
		site.CrawlInterval,
		site.MaxDepth,
		pq.Array(site.AllowedDomains),
		site.RespectRobots,
		site.Status,
		site.LastRun,
		site.NextRun,
		pq.Array(site.Errors),
		site.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *PostgresStore) DeleteSite(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *PostgresStore) UpsertPage(ctx context.Context, page *models.Page) error {
	query := `
        INSERT INTO pages (id, site_id, path, title, last_modified, change_freq, priority, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (site_id, path) DO UPDATE SET
            title = EXCLUDED.title,
            last_modified = EXCLUDED.last_modified,
            change_freq = EXCLUDED.change_freq,
            priority = EXCLUDED.priority,
            updated_at = CURRENT_TIMESTAMP
        RETURNING id, created_at
    `

	return s.db.QueryRowContext(ctx, query,
		page.ID,
		page.SiteID,
		page.Path,
		page.Title,
		page.LastModified,
		page.ChangeFreq,
		page.Priority,
		page.CreatedAt,
		page.UpdatedAt,
	).Scan(&page.ID, &page.CreatedAt)
}

const pgPageColumns = `id, site_id, path, title, last_modified, change_freq, priority, created_at, updated_at`

func (s *PostgresStore) ListPages(ctx context.Context, siteID uuid.UUID, limit, offset int) ([]*models.Page, error) {
	query := `SELECT ` + pgPageColumns + ` FROM pages WHERE site_id = $1 ORDER BY seq LIMIT $2 OFFSET $3`
	return s.queryPages(ctx, query, siteID, limit, offset)
}

func (s *PostgresStore) AllPages(ctx context.Context, siteID uuid.UUID) ([]*models.Page, error) {
	query := `SELECT ` + pgPageColumns + ` FROM pages WHERE site_id = $1 ORDER BY seq`
	return s.queryPages(ctx, query, siteID)
}

func (s *PostgresStore) CountPages(ctx context.Context, siteID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE site_id = $1`, siteID).Scan(&n)
	return n, err
}

func (s *PostgresStore) DeletePage(ctx context.Context, siteID uuid.UUID, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE site_id = $1 AND path = $2`, siteID, path)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *PostgresStore) queryPages(ctx context.Context, query string, args ...interface{}) ([]*models.Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page := &models.Page{}
		var title sql.NullString

		err := rows.Scan(
			&page.ID,
			&page.SiteID,
			&page.Path,
			&title,
			&page.LastModified,
			&page.ChangeFreq,
			&page.Priority,
			&page.CreatedAt,
			&page.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		page.Title = title.String
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPgSite(row rowScanner) (*models.Site, error) {
	site := &models.Site{}
	var startURL, sitemapURL, userAgent, interval sql.NullString
	var domains, errs []string

	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.BaseURL,
		&startURL,
		&sitemapURL,
		&userAgent,
		&interval,
		&site.MaxDepth,
		pq.Array(&domains),
		&site.RespectRobots,
		&site.Status,
		&site.LastRun,
		&site.NextRun,
		pq.Array(&errs),
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	site.StartURL = startURL.String
	site.SitemapURL = sitemapURL.String
	site.UserAgent = userAgent.String
	site.CrawlInterval = interval.String
	site.AllowedDomains = domains
	site.Errors = errs
	return site, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
