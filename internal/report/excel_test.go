package report

import (
	"math"
	"path/filepath"
	"strconv"
	"testing"
)

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.xlsx")
	wb := Workbook{
		Sheets: []Sheet{
			{
				Name:   "Weekly QA",
				Header: []string{"Filename", "Mean", "SNR"},
				Rows: [][]any{
					{"IMG0001.dcm", 1000.5, 120.25},
					{"IMG0002.dcm", 998.0, Undefined},
				},
			},
			{
				Name:   "Notes",
				Header: []string{"Key", "Value"},
				Rows:   [][]any{{"mode", "weekly"}},
			},
		},
	}
	if err := WriteWorkbook(path, wb); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	rows, err := ReadWorkbookRows(path, "Weekly QA")
	if err != nil {
		t.Fatalf("ReadWorkbookRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("sheet has %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Filename" || rows[0][2] != "SNR" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "IMG0001.dcm" {
		t.Errorf("first data row = %v", rows[1])
	}
	// Numeric cells survive the round trip within floating-point
	// tolerance.
	numeric := []struct {
		cell string
		want float64
	}{
		{rows[1][1], 1000.5},
		{rows[1][2], 120.25},
		{rows[2][1], 998.0},
	}
	for _, n := range numeric {
		got, err := strconv.ParseFloat(n.cell, 64)
		if err != nil {
			t.Errorf("cell %q is not numeric: %v", n.cell, err)
			continue
		}
		if math.Abs(got-n.want) > 1e-9 {
			t.Errorf("cell = %v, want %v", got, n.want)
		}
	}
	if rows[2][2] != Undefined {
		t.Errorf("undefined cell = %q, want %q", rows[2][2], Undefined)
	}

	notes, err := ReadWorkbookRows(path, "Notes")
	if err != nil {
		t.Fatalf("ReadWorkbookRows(Notes): %v", err)
	}
	if len(notes) != 2 || notes[1][1] != "weekly" {
		t.Errorf("Notes rows = %v", notes)
	}
}

func TestWriteWorkbook_EmptyRowsStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	wb := Workbook{
		Sheets: []Sheet{{
			Name:   "Weekly QA",
			Header: []string{"Filename", "Mean"},
		}},
	}
	if err := WriteWorkbook(path, wb); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	rows, err := ReadWorkbookRows(path, "Weekly QA")
	if err != nil {
		t.Fatalf("ReadWorkbookRows: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "Filename" {
		t.Errorf("rows = %v, want header only", rows)
	}
}
