package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/bourgema/prisma-refs/internal/biblio"
)

// Sheet names in the combined workbook.
const (
	bySourceSheet = "By Source"
	uniqueSheet   = "Unique"
	failuresSheet = "Failures"
)

// WriteWorkbook writes all run artifacts as one XLSX workbook with a
// sheet per artifact. The failures sheet is only created when the
// ledger is non-empty.
func WriteWorkbook(path string, bySource, unique []biblio.Record, failures []Failure) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRecordSheet(f, bySourceSheet, bySource); err != nil {
		return err
	}
	if err := writeRecordSheet(f, uniqueSheet, unique); err != nil {
		return err
	}
	if len(failures) > 0 {
		if _, err := f.NewSheet(failuresSheet); err != nil {
			return fmt.Errorf("creating sheet %s: %w", failuresSheet, err)
		}
		if err := setRow(f, failuresSheet, 1, FailureColumns); err != nil {
			return err
		}
		for i, fail := range failures {
			if err := setRow(f, failuresSheet, i+2, []string{fail.Source, fail.Error}); err != nil {
				return err
			}
		}
	}

	// Drop excelize's default sheet; artifacts have their own.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeRecordSheet(f *excelize.File, sheet string, records []biblio.Record) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}
	if err := setRow(f, sheet, 1, RecordColumns); err != nil {
		return err
	}
	for i, r := range records {
		if err := setRow(f, sheet, i+2, recordRow(r)); err != nil {
			return err
		}
	}
	// Titles are long; widen their column.
	if err := f.SetColWidth(sheet, "B", "B", 60); err != nil {
		return fmt.Errorf("formatting sheet %s: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("formatting sheet %s: %w", sheet, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("formatting sheet %s: %w", sheet, err)
		}
	}
	return nil
}
