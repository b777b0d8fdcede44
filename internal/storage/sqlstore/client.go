package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/storage/models"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Client struct {
	db     *sql.DB
	driver string
}

func NewClient(driver, dsn string) (*Client, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		if _, err = db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	logger.Info("Primary store client initialized", zap.String("driver", driver))

	return &Client{db: db, driver: driver}, nil
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := sqliteSchema
	if c.driver == DriverPostgres {
		schema = postgresSchema
	}

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Primary store schema initialized")
	return nil
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS districts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		state_name TEXT NOT NULL,
		district_name TEXT NOT NULL,
		district_code TEXT,
		updated_at INTEGER NOT NULL,
		UNIQUE (state_name, district_name)
	);
	CREATE INDEX IF NOT EXISTS idx_districts_name ON districts(district_name);

	CREATE TABLE IF NOT EXISTS mgnrega_monthly (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		district_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		persons_benefitted INTEGER NOT NULL DEFAULT 0,
		person_days INTEGER NOT NULL DEFAULT 0,
		wages_paid INTEGER NOT NULL DEFAULT 0,
		households_worked INTEGER NOT NULL DEFAULT 0,
		source_date INTEGER NOT NULL,
		raw_json TEXT,
		CONSTRAINT uq_district_month UNIQUE (district_id, year, month),
		FOREIGN KEY (district_id) REFERENCES districts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_monthly_district ON mgnrega_monthly(district_id);
	`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS districts (
		id BIGSERIAL PRIMARY KEY,
		state_name TEXT NOT NULL,
		district_name TEXT NOT NULL,
		district_code TEXT,
		updated_at BIGINT NOT NULL,
		UNIQUE (state_name, district_name)
	);
	CREATE INDEX IF NOT EXISTS idx_districts_name ON districts(district_name);

	CREATE TABLE IF NOT EXISTS mgnrega_monthly (
		id BIGSERIAL PRIMARY KEY,
		district_id BIGINT NOT NULL REFERENCES districts(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		persons_benefitted BIGINT NOT NULL DEFAULT 0,
		person_days BIGINT NOT NULL DEFAULT 0,
		wages_paid BIGINT NOT NULL DEFAULT 0,
		households_worked BIGINT NOT NULL DEFAULT 0,
		source_date BIGINT NOT NULL,
		raw_json TEXT,
		CONSTRAINT uq_district_month UNIQUE (district_id, year, month)
	);
	CREATE INDEX IF NOT EXISTS idx_monthly_district ON mgnrega_monthly(district_id);
	`

// rebind rewrites ? placeholders into the $n form lib/pq expects.
func (c *Client) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) ListDistricts(ctx context.Context) ([]models.District, error) {
	query := `SELECT id, state_name, district_name, COALESCE(district_code, ''), updated_at FROM districts ORDER BY district_name`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}
	defer rows.Close()

	var districts []models.District
	for rows.Next() {
		var d models.District
		var updatedAt int64

		if err := rows.Scan(&d.ID, &d.Region, &d.Name, &d.Code, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.UpdatedAt = time.Unix(updatedAt, 0)
		districts = append(districts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate districts: %w", err)
	}

	return districts, nil
}

func (c *Client) GetDistrict(ctx context.Context, id int64) (*models.District, error) {
	query := c.rebind(`SELECT id, state_name, district_name, COALESCE(district_code, ''), updated_at FROM districts WHERE id = ?`)

	var d models.District
	var updatedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Region, &d.Name, &d.Code, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get district: %w", err)
	}

	d.UpdatedAt = time.Unix(updatedAt, 0)
	return &d, nil
}

func (c *Client) ListMonthlyMetrics(ctx context.Context, districtID int64) ([]models.MonthlyMetric, error) {
	query := c.rebind(`
		SELECT id, district_id, year, month, persons_benefitted, person_days, wages_paid,
			households_worked, source_date, COALESCE(raw_json, '')
		FROM mgnrega_monthly
		WHERE district_id = ?
		ORDER BY year, month
	`)

	rows, err := c.db.QueryContext(ctx, query, districtID)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.MonthlyMetric
	for rows.Next() {
		var m models.MonthlyMetric
		var sourceDate int64
		var raw string

		err := rows.Scan(&m.ID, &m.DistrictID, &m.Year, &m.Month, &m.PersonsBenefitted,
			&m.PersonDays, &m.WagesPaid, &m.HouseholdsWorked, &sourceDate, &raw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.SourceDate = time.Unix(sourceDate, 0)
		if raw != "" {
			m.RawJSON = []byte(raw)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly metrics: %w", err)
	}

	return metrics, nil
}

// Tx is a unit of work spanning one ingestion run.
type Tx struct {
	tx *sql.Tx
	c  *Client
}

// WithTx runs fn inside a transaction, committing only when fn returns nil.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx, c: c}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// EnsureDistrict returns the id of (region, name), creating the district on
// first sighting and touching updated_at otherwise.
func (t *Tx) EnsureDistrict(ctx context.Context, region, name string, at time.Time) (int64, error) {
	query := t.c.rebind(`
		INSERT INTO districts (state_name, district_name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(state_name, district_name) DO UPDATE SET
			updated_at = excluded.updated_at
		RETURNING id
	`)

	var id int64
	if err := t.tx.QueryRowContext(ctx, query, region, name, at.Unix()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure district %q: %w", name, err)
	}
	return id, nil
}

// UpsertMonthlyMetric writes m keyed by (district, year, month), overwriting
// any existing values and raw record.
func (t *Tx) UpsertMonthlyMetric(ctx context.Context, m *models.MonthlyMetric) (models.UpsertResult, error) {
	var existingID int64
	err := t.tx.QueryRowContext(ctx,
		t.c.rebind(`SELECT id FROM mgnrega_monthly WHERE district_id = ? AND year = ? AND month = ?`),
		m.DistrictID, m.Year, m.Month,
	).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		query := t.c.rebind(`
			INSERT INTO mgnrega_monthly (district_id, year, month, persons_benefitted, person_days,
				wages_paid, households_worked, source_date, raw_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		_, err = t.tx.ExecContext(ctx, query,
			m.DistrictID, m.Year, m.Month, m.PersonsBenefitted, m.PersonDays,
			m.WagesPaid, m.HouseholdsWorked, m.SourceDate.Unix(), string(m.RawJSON),
		)
		if err != nil {
			return models.Created, fmt.Errorf("failed to insert monthly metric: %w", err)
		}
		return models.Created, nil

	case err != nil:
		return models.Updated, fmt.Errorf("failed to look up monthly metric: %w", err)
	}

	query := t.c.rebind(`
		UPDATE mgnrega_monthly SET
			persons_benefitted = ?,
			person_days = ?,
			wages_paid = ?,
			households_worked = ?,
			source_date = ?,
			raw_json = ?
		WHERE id = ?
	`)
	_, err = t.tx.ExecContext(ctx, query,
		m.PersonsBenefitted, m.PersonDays, m.WagesPaid, m.HouseholdsWorked,
		m.SourceDate.Unix(), string(m.RawJSON), existingID,
	)
	if err != nil {
		return models.Updated, fmt.Errorf("failed to update monthly metric: %w", err)
	}

	logger.Debug("Monthly metric updated",
		zap.Int64("district_id", m.DistrictID),
		zap.Int("year", m.Year),
		zap.Int("month", m.Month),
	)
	return models.Updated, nil
}
