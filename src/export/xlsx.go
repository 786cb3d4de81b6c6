package export

import (
	"fmt"
	"strings"
	"time"

	"lod-engine/src/models"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	invalidSheets = `:\/?*[]`
)

// -----------------------------------------------------------------------------

// WriteXLSX saves decimated series into one workbook, one sheet per series.
func WriteXLSX(path string, series ...*models.MDecimatedSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	keepDefault := false
	for _, s := range series {
		if s == nil {
			continue
		}
		sheet := sheetName(s.SeriesID)
		keepDefault = keepDefault || sheet == defaultSheet
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, s); err != nil {
			return err
		}
	}

	if !keepDefault && f.SheetCount > 1 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func writeSheet(f *excelize.File, sheet string, s *models.MDecimatedSeries) error {
	fields := models.FieldsFor(s.Kind)

	header := []interface{}{"time"}
	for _, name := range fields {
		header = append(header, name)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}

	for i, t := range s.Times {
		row := make([]interface{}, 0, len(fields)+1)
		row = append(row, time.UnixMilli(t).UTC())
		for _, name := range fields {
			col := s.Fields[name]
			if i < len(col) {
				row = append(row, col[i])
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i, sheet, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// sheetName maps a series id onto the characters and length Excel accepts
func sheetName(id string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheets, r) {
			return '_'
		}
		return r
	}, id)
	if name == "" {
		name = "series"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
