package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"gradwatch/models"
)

const dateFormat = "2006-01-02"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL UNIQUE,
		company TEXT NOT NULL,
		role TEXT NOT NULL,
		location TEXT,
		application_link TEXT,
		date_posted TEXT NOT NULL,
		first_seen_at DATETIME,
		last_seen_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS applications (
		user_id INTEGER NOT NULL,
		listing_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, listing_id),
		FOREIGN KEY (listing_id) REFERENCES listings(id)
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		run_uid TEXT,
		source_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		listings_updated INTEGER DEFAULT 0,
		records_dropped INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_listings_date ON listings(date_posted);
	CREATE INDEX IF NOT EXISTS idx_applications_user ON applications(user_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const listingColumns = `id, identity, company, role, location, application_link, date_posted, first_seen_at, last_seen_at`

func scanListing(row interface{ Scan(...any) error }) (*models.Listing, error) {
	var l models.Listing
	var location, link sql.NullString
	var datePosted string
	err := row.Scan(&l.ID, &l.Identity, &l.Company, &l.Role, &location, &link,
		&datePosted, &l.FirstSeenAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	l.Location = location.String
	l.ApplicationLink = link.String
	l.DatePosted, err = time.Parse(dateFormat, datePosted)
	if err != nil {
		return nil, fmt.Errorf("bad date_posted %q: %w", datePosted, err)
	}
	return &l, nil
}

// InTx runs fn inside one transaction. Used by the reconciler so a
// scrape cycle commits all of its writes or none of them.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) GetListingByIdentity(ctx context.Context, identity string) (*models.Listing, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE identity = ?`, identity)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (t *sqliteTx) InsertListing(ctx context.Context, l *models.Listing) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO listings (identity, company, role, location, application_link, date_posted, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Identity, l.Company, l.Role, l.Location, l.ApplicationLink,
		l.DatePosted.Format(dateFormat), l.FirstSeenAt, l.LastSeenAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (t *sqliteTx) UpdateListing(ctx context.Context, l *models.Listing) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE listings SET company = ?, role = ?, location = ?, application_link = ?,
			date_posted = ?, last_seen_at = ?
		WHERE id = ?`,
		l.Company, l.Role, l.Location, l.ApplicationLink,
		l.DatePosted.Format(dateFormat), l.LastSeenAt, l.ID)
	return err
}

func (t *sqliteTx) TouchListing(ctx context.Context, id int64, seenAt time.Time) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE listings SET last_seen_at = ? WHERE id = ?`, seenAt, id)
	return err
}

func (s *SQLiteStore) CountListings(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) FindListingsByAge(ctx context.Context, threshold time.Time, requireLink bool) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE date_posted >= ?`
	if requireLink {
		query += ` AND application_link IS NOT NULL AND application_link != ''`
	}
	query += ` ORDER BY date_posted DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, threshold.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

func (s *SQLiteStore) GetListingByID(ctx context.Context, id int64) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// Apply is idempotent: a duplicate apply leaves exactly one row.
func (s *SQLiteStore) Apply(ctx context.Context, userID, listingID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO applications (user_id, listing_id) VALUES (?, ?)`,
		userID, listingID)
	return err
}

func (s *SQLiteStore) Unapply(ctx context.Context, userID, listingID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM applications WHERE user_id = ? AND listing_id = ?`,
		userID, listingID)
	return err
}

func (s *SQLiteStore) ApplicationsFor(ctx context.Context, userID int64) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.identity, l.company, l.role, l.location, l.application_link,
			l.date_posted, l.first_seen_at, l.last_seen_at
		FROM listings l
		JOIN applications a ON l.id = a.listing_id
		WHERE a.user_id = ?
		ORDER BY l.date_posted DESC, l.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (run_uid, source_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.RunUID, run.SourceID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_new = ?, listings_updated = ?, records_dropped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound,
		run.ListingsNew, run.ListingsUpdated, run.RecordsDropped, run.ErrorsCount, run.ID)
	return err
}

func collectListings(rows *sql.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}
