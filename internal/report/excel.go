// Package report renders analysis output: Excel workbooks with one sheet
// per result group, and a PNG overlay showing where the ROIs landed.
package report

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Undefined is written in place of a metric that could not be computed
// (zero noise, missing pair image).
const Undefined = "N/A"

// Sheet is one worksheet: a header row followed by data rows. Row cells
// may be strings, numbers, or anything excelize can set.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Workbook is an ordered set of sheets.
type Workbook struct {
	Sheets []Sheet
}

// WriteWorkbook writes the workbook to path, replacing any existing file.
// An empty workbook still produces a valid file so a run with no usable
// images leaves evidence behind.
func WriteWorkbook(path string, wb Workbook) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Warn("closing workbook")
		}
	}()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("workbook header style: %w", err)
	}

	for i, sheet := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return fmt.Errorf("rename sheet %q: %w", sheet.Name, err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return fmt.Errorf("create sheet %q: %w", sheet.Name, err)
			}
		}

		header := make([]any, len(sheet.Header))
		for c, h := range sheet.Header {
			header[c] = h
		}
		if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
			return fmt.Errorf("write header of %q: %w", sheet.Name, err)
		}
		if len(header) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(header), 1)
			if err := f.SetCellStyle(sheet.Name, "A1", end, headerStyle); err != nil {
				return fmt.Errorf("style header of %q: %w", sheet.Name, err)
			}
		}

		for r, row := range sheet.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
				return fmt.Errorf("write row %d of %q: %w", r+2, sheet.Name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"path":   path,
		"sheets": len(wb.Sheets),
	}).Info("workbook written")
	return nil
}

// ReadWorkbookRows returns all rows of one sheet as strings. Used by the
// test suite to verify written workbooks.
func ReadWorkbookRows(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}
