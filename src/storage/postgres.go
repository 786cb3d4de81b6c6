package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lod-engine/src/helpers"
	"lod-engine/src/logger"
	"lod-engine/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps the tables in a schema named after the executable
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if log == nil {
		log = logger.NewLogger(cfg, "PostgresDB")
	}

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}
	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			series_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.table("series_catalog"))
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create series_catalog: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			series_id TEXT,
			ts BIGINT,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			value DOUBLE PRECISION,
			PRIMARY KEY (series_id, ts)
		);
	`, d.table("series_points"))
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create series_points: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveBarsBulk(seriesID string, bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (series_id, ts, open, high, low, close, volume, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (series_id, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			value = EXCLUDED.value
	`, d.table("series_points"))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return helpers.NewDatabaseError("prepare save bars", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(seriesID, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume, b.Value); err != nil {
			return helpers.NewDatabaseError("save bars "+seriesID, err)
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadRange(seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	query := fmt.Sprintf(`
		SELECT ts, open, high, low, close, volume, value FROM %s
		WHERE series_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts
	`, d.table("series_points"))
	rows, err := d.DB.Query(query, seriesID, r.Start, r.End)
	if err != nil {
		return nil, helpers.NewDatabaseError("load range "+seriesID, err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Bounds(seriesID string) (*models.MTimeRange, error) {
	var lo, hi sql.NullInt64
	query := fmt.Sprintf(`SELECT MIN(ts), MAX(ts) FROM %s WHERE series_id = $1`, d.table("series_points"))
	if err := d.DB.QueryRow(query, seriesID).Scan(&lo, &hi); err != nil {
		return nil, helpers.NewDatabaseError("bounds "+seriesID, err)
	}
	if !lo.Valid || !hi.Valid {
		return nil, nil
	}
	return &models.MTimeRange{Start: lo.Int64, End: hi.Int64}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadLatest(seriesID string, after int64, limit int) ([]models.MBar, error) {
	query := fmt.Sprintf(`
		SELECT ts, open, high, low, close, volume, value FROM %s
		WHERE series_id = $1 AND ts > $2
		ORDER BY ts
	`, d.table("series_points"))
	args := []interface{}{seriesID, after}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, helpers.NewDatabaseError("load latest "+seriesID, err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
