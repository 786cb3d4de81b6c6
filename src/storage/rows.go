package storage

import (
	"database/sql"

	"lod-engine/src/models"
)

// scanBars reads (ts, open, high, low, close, volume, value) rows
func scanBars(rows *sql.Rows) ([]models.MBar, error) {
	var out []models.MBar
	for rows.Next() {
		var b models.MBar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Value); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
