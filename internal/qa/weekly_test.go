package qa

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/phantomlab/mriqa/internal/phantomgen"
	"github.com/phantomlab/mriqa/internal/report"
)

func generateWeeklyInput(t *testing.T, dir string) {
	t.Helper()
	_, err := phantomgen.Generate(phantomgen.Options{
		OutputDir:      dir,
		NumImages:      3,
		Width:          64,
		Height:         64,
		PixelSpacingMM: 3.0,
		SignalValue:    1000,
		NoiseSD:        15,
		Seed:           42,
	})
	if err != nil {
		t.Fatalf("generate input: %v", err)
	}
}

func TestRunWeekly_RowPerImage(t *testing.T) {
	dir := t.TempDir()
	generateWeeklyInput(t, dir)
	// A file that claims to be DICOM but is not.
	if err := os.WriteFile(filepath.Join(dir, "broken.dcm"), []byte("not a dicom file"), 0644); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	rc := RunContext{
		InputDir:     dir,
		Mode:         ModeWeekly,
		WorkbookPath: filepath.Join(outDir, "output_metrics.xlsx"),
		OverlayPath:  filepath.Join(outDir, "weekly_roi.png"),
		Workers:      2,
	}
	result, err := Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Rows != 3 {
		t.Errorf("Rows = %d, want 3", result.Rows)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("Failures = %+v, want exactly one decode failure", result.Failures)
	}
	if result.Failures[0].Stage != "decode" {
		t.Errorf("failure stage = %q, want decode", result.Failures[0].Stage)
	}

	rows, err := report.ReadWorkbookRows(rc.WorkbookPath, "Weekly QA")
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}
	if len(rows) != 4 { // header + 3 images
		t.Fatalf("workbook has %d rows, want 4", len(rows))
	}
	if rows[1][0] != "IMG0001.dcm" || rows[3][0] != "IMG0003.dcm" {
		t.Errorf("rows out of order: %v, %v", rows[1][0], rows[3][0])
	}
	// With real noise in the corners SNR and PIU are concrete numbers.
	for _, r := range rows[1:] {
		if r[6] == report.Undefined || r[7] == report.Undefined {
			t.Errorf("row %v has undefined SNR/PIU on a noisy acquisition", r[0])
		}
	}

	if _, err := os.Stat(result.OverlayPath); err != nil {
		t.Errorf("overlay not written: %v", err)
	}
}

func TestRunWeekly_EmptyDirectoryStillWritesWorkbook(t *testing.T) {
	outDir := t.TempDir()
	rc := RunContext{
		InputDir:     t.TempDir(),
		Mode:         ModeWeekly,
		WorkbookPath: filepath.Join(outDir, "output_metrics.xlsx"),
	}
	result, err := Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Rows != 0 {
		t.Errorf("Rows = %d, want 0", result.Rows)
	}
	rows, err := report.ReadWorkbookRows(rc.WorkbookPath, "Weekly QA")
	if err != nil {
		t.Fatalf("read workbook: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("workbook rows = %v, want header only", rows)
	}
	if result.OverlayPath != "" {
		t.Errorf("overlay path = %q, want none", result.OverlayPath)
	}
}

func TestRunWeekly_DeterministicAcrossWorkerCounts(t *testing.T) {
	dir := t.TempDir()
	generateWeeklyInput(t, dir)

	read := func(workers int) [][]string {
		out := filepath.Join(t.TempDir(), "metrics.xlsx")
		_, err := Run(context.Background(), RunContext{
			InputDir:     dir,
			Mode:         ModeWeekly,
			WorkbookPath: out,
			Workers:      workers,
		})
		if err != nil {
			t.Fatalf("Run(workers=%d): %v", workers, err)
		}
		rows, err := report.ReadWorkbookRows(out, "Weekly QA")
		if err != nil {
			t.Fatalf("read workbook: %v", err)
		}
		return rows
	}

	if got, want := read(8), read(1); !reflect.DeepEqual(got, want) {
		t.Errorf("results differ across worker counts:\n%v\nvs\n%v", got, want)
	}
}

func TestRunWeekly_Cancellation(t *testing.T) {
	dir := t.TempDir()
	generateWeeklyInput(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, RunContext{
		InputDir:     dir,
		Mode:         ModeWeekly,
		WorkbookPath: filepath.Join(t.TempDir(), "metrics.xlsx"),
	})
	if err == nil {
		t.Fatal("Run with canceled context should fail")
	}
}
