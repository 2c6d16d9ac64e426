package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/romangod6/sitemapper/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// database/sql pools connections; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sites (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            base_url TEXT NOT NULL,
            start_url TEXT,
            sitemap_url TEXT,
            user_agent TEXT,
            crawl_interval TEXT,
            max_depth INTEGER NOT NULL DEFAULT 0,
            allowed_domains TEXT,
            respect_robots BOOLEAN NOT NULL DEFAULT 1,
            status TEXT NOT NULL,
            last_run DATETIME,
            next_run DATETIME,
            errors TEXT,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS pages (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT UNIQUE NOT NULL,
            site_id TEXT NOT NULL,
            path TEXT NOT NULL,
            title TEXT,
            last_modified DATETIME NOT NULL,
            change_freq TEXT NOT NULL,
            priority REAL NOT NULL,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (site_id, path),
            FOREIGN KEY(site_id) REFERENCES sites(id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pages_site_id ON pages(site_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

func (s *SQLiteStore) CreateSite(ctx context.Context, site *models.Site) error {
	query := `
        INSERT INTO sites (id, name, base_url, start_url, sitemap_url, user_agent, crawl_interval, max_depth,
            allowed_domains, respect_robots, status, last_run, next_run, errors, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	domainsJSON, errorsJSON, err := marshalSiteLists(site)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		site.ID.String(),
		site.Name,
		site.BaseURL,
		site.StartURL,
		site.SitemapURL,
		site.UserAgent,
		site.CrawlInterval,
		site.MaxDepth,
		domainsJSON,
		site.RespectRobots,
		site.Status,
		site.LastRun,
		site.NextRun,
		errorsJSON,
		site.CreatedAt,
		site.UpdatedAt,
	)

	return err
}

const sqliteSiteColumns = `id, name, base_url, start_url, sitemap_url, user_agent, crawl_interval, max_depth,
        allowed_domains, respect_robots, status, last_run, next_run, errors, created_at, updated_at`

func (s *SQLiteStore) GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	query := `SELECT ` + sqliteSiteColumns + ` FROM sites WHERE id = ?`

	site, err := scanSQLiteSite(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return site, nil
}

func (s *SQLiteStore) ListSites(ctx context.Context) ([]*models.Site, error) {
	query := `SELECT ` + sqliteSiteColumns + ` FROM sites ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		site, err := scanSQLiteSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

func (s *SQLiteStore) UpdateSite(ctx context.Context, site *models.Site) error {
	query := `
        UPDATE sites SET
            name = ?, base_url = ?, start_url = ?, sitemap_url = ?, user_agent = ?, crawl_interval = ?,
            max_depth = ?, allowed_domains = ?, respect_robots = ?, status = ?, last_run = ?,
            next_run = ?, errors = ?, updated_at = ?
        WHERE id = ?
    `

	domainsJSON, errorsJSON, err := marshalSiteLists(site)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query,
		site.Name,
		site.BaseURL,
		site.StartURL,
		site.SitemapURL,
		site.UserAgent,
		site.CrawlInterval,
		site.MaxDepth,
		domainsJSON,
		site.RespectRobots,
		site.Status,
		site.LastRun,
		site.NextRun,
		errorsJSON,
		site.UpdatedAt,
		site.ID.String(),
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *SQLiteStore) DeleteSite(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE site_id = ?`, id.String()); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertPage(ctx context.Context, page *models.Page) error {
	query := `
        INSERT INTO pages (id, site_id, path, title, last_modified, change_freq, priority, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(site_id, path) DO UPDATE SET
            title = excluded.title,
            last_modified = excluded.last_modified,
            change_freq = excluded.change_freq,
            priority = excluded.priority,
            updated_at = excluded.updated_at
    `

	_, err := s.db.ExecContext(ctx, query,
		page.ID.String(),
		page.SiteID.String(),
		page.Path,
		page.Title,
		page.LastModified,
		page.ChangeFreq,
		page.Priority,
		page.CreatedAt,
		page.UpdatedAt,
	)
	if err != nil {
		return err
	}

	// An update keeps the original row; reflect its identity back to the caller.
	var idStr string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM pages WHERE site_id = ? AND path = ?`,
		page.SiteID.String(), page.Path,
	).Scan(&idStr, &page.CreatedAt)
	if err != nil {
		return err
	}
	page.ID, err = uuid.Parse(idStr)
	return err
}

const sqlitePageColumns = `id, site_id, path, title, last_modified, change_freq, priority, created_at, updated_at`

func (s *SQLiteStore) ListPages(ctx context.Context, siteID uuid.UUID, limit, offset int) ([]*models.Page, error) {
	query := `SELECT ` + sqlitePageColumns + ` FROM pages WHERE site_id = ? ORDER BY seq LIMIT ? OFFSET ?`
	return s.queryPages(ctx, query, siteID.String(), limit, offset)
}

func (s *SQLiteStore) AllPages(ctx context.Context, siteID uuid.UUID) ([]*models.Page, error) {
	query := `SELECT ` + sqlitePageColumns + ` FROM pages WHERE site_id = ? ORDER BY seq`
	return s.queryPages(ctx, query, siteID.String())
}

func (s *SQLiteStore) CountPages(ctx context.Context, siteID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE site_id = ?`, siteID.String()).Scan(&n)
	return n, err
}

func (s *SQLiteStore) DeletePage(ctx context.Context, siteID uuid.UUID, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE site_id = ? AND path = ?`, siteID.String(), path)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *SQLiteStore) queryPages(ctx context.Context, query string, args ...interface{}) ([]*models.Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		var page models.Page
		var idStr, siteIDStr string
		var title sql.NullString

		err := rows.Scan(
			&idStr,
			&siteIDStr,
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

		page.ID, _ = uuid.Parse(idStr)
		page.SiteID, _ = uuid.Parse(siteIDStr)
		page.Title = title.String

		pages = append(pages, &page)
	}

	return pages, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteSite(row rowScanner) (*models.Site, error) {
	site := &models.Site{}
	var idStr string
	var startURL, sitemapURL, userAgent, interval, domainsJSON, errorsJSON sql.NullString

	err := row.Scan(
		&idStr,
		&site.Name,
		&site.BaseURL,
		&startURL,
		&sitemapURL,
		&userAgent,
		&interval,
		&site.MaxDepth,
		&domainsJSON,
		&site.RespectRobots,
		&site.Status,
		&site.LastRun,
		&site.NextRun,
		&errorsJSON,
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	site.ID, _ = uuid.Parse(idStr)
	site.StartURL = startURL.String
	site.SitemapURL = sitemapURL.String
	site.UserAgent = userAgent.String
	site.CrawlInterval = interval.String
	if domainsJSON.Valid {
		json.Unmarshal([]byte(domainsJSON.String), &site.AllowedDomains)
	}
	if errorsJSON.Valid {
		json.Unmarshal([]byte(errorsJSON.String), &site.Errors)
	}
	return site, nil
}

func marshalSiteLists(site *models.Site) (string, string, error) {
	domains, err := json.Marshal(site.AllowedDomains)
	if err != nil {
		return "", "", err
	}
	errs, err := json.Marshal(site.Errors)
	if err != nil {
		return "", "", err
	}
	return string(domains), string(errs), nil
}
