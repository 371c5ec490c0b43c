package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gradwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		identity TEXT NOT NULL UNIQUE,
		company TEXT NOT NULL,
		role TEXT NOT NULL,
		location TEXT,
		application_link TEXT,
		date_posted DATE NOT NULL,
		first_seen_at TIMESTAMPTZ,
		last_seen_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS applications (
		user_id BIGINT NOT NULL,
		listing_id BIGINT NOT NULL REFERENCES listings(id),
		created_at TIMESTAMPTZ DEFAULT NOW(),
		PRIMARY KEY (user_id, listing_id)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id BIGSERIAL PRIMARY KEY,
		run_uid TEXT,
		source_id TEXT,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		listings_found INT DEFAULT 0,
		listings_new INT DEFAULT 0,
		listings_updated INT DEFAULT 0,
		records_dropped INT DEFAULT 0,
		errors_count INT DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_listings_date ON listings(date_posted);
	CREATE INDEX IF NOT EXISTS idx_applications_user ON applications(user_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const pgListingColumns = `id, identity, company, role, COALESCE(location, ''), COALESCE(application_link, ''), date_posted, first_seen_at, last_seen_at`

func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&postgresTx{tx: tx}); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type postgresTx struct {
	tx pgx.Tx
}

func scanPgListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.Identity, &l.Company, &l.Role, &l.Location,
		&l.ApplicationLink, &l.DatePosted, &l.FirstSeenAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *postgresTx) GetListingByIdentity(ctx context.Context, identity string) (*models.Listing, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+pgListingColumns+` FROM listings WHERE identity = $1`, identity)
	l, err := scanPgListing(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (t *postgresTx) InsertListing(ctx context.Context, l *models.Listing) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO listings (identity, company, role, location, application_link, date_posted, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		l.Identity, l.Company, l.Role, l.Location, l.ApplicationLink,
		l.DatePosted, l.FirstSeenAt, l.LastSeenAt).Scan(&id)
	return id, err
}

func (t *postgresTx) UpdateListing(ctx context.Context, l *models.Listing) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE listings SET company = $1, role = $2, location = $3, application_link = $4,
			date_posted = $5, last_seen_at = $6
		WHERE id = $7`,
		l.Company, l.Role, l.Location, l.ApplicationLink, l.DatePosted, l.LastSeenAt, l.ID)
	return err
}

func (t *postgresTx) TouchListing(ctx context.Context, id int64, seenAt time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE listings SET last_seen_at = $1 WHERE id = $2`, seenAt, id)
	return err
}

func (s *PostgresStore) CountListings(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count)
	return count, err
}

func (s *PostgresStore) FindListingsByAge(ctx context.Context, threshold time.Time, requireLink bool) ([]models.Listing, error) {
	query := `SELECT ` + pgListingColumns + ` FROM listings WHERE date_posted >= $1`
	if requireLink {
		query += ` AND application_link IS NOT NULL AND application_link != ''`
	}
	query += ` ORDER BY date_posted DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgListings(rows)
}

func (s *PostgresStore) GetListingByID(ctx context.Context, id int64) (*models.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgListingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanPgListing(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (s *PostgresStore) Apply(ctx context.Context, userID, listingID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications (user_id, listing_id) VALUES ($1, $2)
		ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID)
	return err
}

func (s *PostgresStore) Unapply(ctx context.Context, userID, listingID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM applications WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID)
	return err
}

func (s *PostgresStore) ApplicationsFor(ctx context.Context, userID int64) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.identity, l.company, l.role, COALESCE(l.location, ''),
			COALESCE(l.application_link, ''), l.date_posted, l.first_seen_at, l.last_seen_at
		FROM listings l
		JOIN applications a ON l.id = a.listing_id
		WHERE a.user_id = $1
		ORDER BY l.date_posted DESC, l.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgListings(rows)
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scrape_runs (run_uid, source_id, started_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		run.RunUID, run.SourceID, run.StartedAt, run.Status).Scan(&id)
	return id, err
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET finished_at = $1, status = $2, listings_found = $3,
			listings_new = $4, listings_updated = $5, records_dropped = $6, errors_count = $7
		WHERE id = $8`,
		run.FinishedAt, run.Status, run.ListingsFound,
		run.ListingsNew, run.ListingsUpdated, run.RecordsDropped, run.ErrorsCount, run.ID)
	return err
}

func collectPgListings(rows pgx.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
