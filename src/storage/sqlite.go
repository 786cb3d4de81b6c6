package storage

import (
	"database/sql"
	"fmt"

	"lod-engine/src/helpers"
	"lod-engine/src/logger"
	"lod-engine/src/models"

	_ "modernc.org/sqlite"
)

// SQLite batch constants
const (
	sqliteMaxVars   = 32000
	paramsPerRow    = 8
	sqliteBatchSize = sqliteMaxVars / paramsPerRow // 4000 rows per transaction
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite storage requires db_path")
	}
	if log == nil {
		log = logger.NewLogger(cfg, "SQLiteDB")
	}
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping", err)
	}
	// one writer; the loader and the scheduler share it
	db.SetMaxOpenConns(1)

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		d.Logger.Warning("Failed to set busy timeout: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}
	d.Logger.Info("SQLite initialized (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS series_catalog (
			series_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create series_catalog: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS series_points (
			series_id TEXT,
			ts INTEGER,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			value REAL,
			PRIMARY KEY (series_id, ts)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create series_points: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) RegisterSeries(seriesID string, kind models.MSeriesKind) error {
	_, err := d.DB.Exec(`
		INSERT INTO series_catalog (series_id, kind) VALUES (?, ?)
		ON CONFLICT (series_id) DO UPDATE SET kind = excluded.kind, updated_at = CURRENT_TIMESTAMP
	`, seriesID, string(kind))
	if err != nil {
		return helpers.NewDatabaseError("register series "+seriesID, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ListSeries() (map[string]models.MSeriesKind, error) {
	rows, err := d.DB.Query(`SELECT series_id, kind FROM series_catalog`)
	if err != nil {
		return nil, helpers.NewDatabaseError("list series", err)
	}
	defer rows.Close()

	out := make(map[string]models.MSeriesKind)
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, err
		}
		out[id] = models.MSeriesKind(kind)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

// SaveBarsBulk upserts bars in transactions of sqliteBatchSize rows
func (d *SQLiteDB) SaveBarsBulk(seriesID string, bars []models.MBar) error {
	for start := 0; start < len(bars); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(bars) {
			end = len(bars)
		}
		if err := d.saveBatch(seriesID, bars[start:end]); err != nil {
			return helpers.NewDatabaseError("save bars "+seriesID, err)
		}
	}
	return nil
}

func (d *SQLiteDB) saveBatch(seriesID string, bars []models.MBar) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO series_points (series_id, ts, open, high, low, close, volume, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (series_id, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			value = excluded.value
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(seriesID, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume, b.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadRange(seriesID string, r models.MTimeRange) ([]models.MBar, error) {
	rows, err := d.DB.Query(`
		SELECT ts, open, high, low, close, volume, value FROM series_points
		WHERE series_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts
	`, seriesID, r.Start, r.End)
	if err != nil {
		return nil, helpers.NewDatabaseError("load range "+seriesID, err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Bounds(seriesID string) (*models.MTimeRange, error) {
	var lo, hi sql.NullInt64
	err := d.DB.QueryRow(`SELECT MIN(ts), MAX(ts) FROM series_points WHERE series_id = ?`, seriesID).Scan(&lo, &hi)
	if err != nil {
		return nil, helpers.NewDatabaseError("bounds "+seriesID, err)
	}
	if !lo.Valid || !hi.Valid {
		return nil, nil
	}
	return &models.MTimeRange{Start: lo.Int64, End: hi.Int64}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadLatest(seriesID string, after int64, limit int) ([]models.MBar, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := d.DB.Query(`
		SELECT ts, open, high, low, close, volume, value FROM series_points
		WHERE series_id = ? AND ts > ?
		ORDER BY ts
		LIMIT ?
	`, seriesID, after, limit)
	if err != nil {
		return nil, helpers.NewDatabaseError("load latest "+seriesID, err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
