package storage

import (
	"fmt"

	"lod-engine/src/helpers"
	"lod-engine/src/models"
)

// Series catalog queries for Postgres

// -----------------------------------------------------------------------------

// RegisterSeries upserts the kind of a series
func (d *PostgresDB) RegisterSeries(seriesID string, kind models.MSeriesKind) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (series_id, kind, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (series_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			updated_at = EXCLUDED.updated_at
	`, d.table("series_catalog"))
	if _, err := d.DB.Exec(query, seriesID, string(kind)); err != nil {
		return helpers.NewDatabaseError("register series "+seriesID, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ListSeries returns every registered series
func (d *PostgresDB) ListSeries() (map[string]models.MSeriesKind, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT series_id, kind FROM %s`, d.table("series_catalog")))
	if err != nil {
		return nil, helpers.NewDatabaseError("list series", err)
	}
	defer rows.Close()

	out := make(map[string]models.MSeriesKind)
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		out[id] = models.MSeriesKind(kind)
	}
	return out, rows.Err()
}
