package tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/phantomlab/mriqa/internal/phantomgen"
	"github.com/phantomlab/mriqa/internal/qa"
	"github.com/phantomlab/mriqa/internal/report"
)

// generate writes one synthetic acquisition for the integration runs.
func generate(t *testing.T, dir string, opts phantomgen.Options) {
	t.Helper()
	opts.OutputDir = dir
	if opts.NumImages == 0 {
		opts.NumImages = 1
	}
	opts.Width = 64
	opts.Height = 64
	opts.PixelSpacingMM = 3.0
	if opts.Seed == 0 {
		opts.Seed = 1234
	}
	if _, err := phantomgen.Generate(opts); err != nil {
		t.Fatalf("generate %s: %v", dir, err)
	}
}

// TestFullPipeline_AllModes runs every analysis mode end to end against
// synthetic acquisitions and checks the workbooks they leave behind.
func TestFullPipeline_AllModes(t *testing.T) {
	ctx := context.Background()

	t.Run("weekly", func(t *testing.T) {
		input := t.TempDir()
		generate(t, input, phantomgen.Options{NumImages: 5, SignalValue: 1000, NoiseSD: 15})

		out := t.TempDir()
		rc := qa.RunContext{
			InputDir:     input,
			Mode:         qa.ModeWeekly,
			WorkbookPath: filepath.Join(out, "output_metrics.xlsx"),
			OverlayPath:  filepath.Join(out, "weekly_roi.png"),
		}
		result, err := qa.Run(ctx, rc)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Rows != 5 || len(result.Failures) != 0 {
			t.Fatalf("rows=%d failures=%+v, want 5 clean rows", result.Rows, result.Failures)
		}
		rows, err := report.ReadWorkbookRows(rc.WorkbookPath, "Weekly QA")
		if err != nil {
			t.Fatalf("read workbook: %v", err)
		}
		if len(rows) != 6 {
			t.Errorf("workbook rows = %d, want header + 5", len(rows))
		}
		if result.OverlayPath == "" {
			t.Error("overlay not written")
		}
	})

	t.Run("nema-body", func(t *testing.T) {
		input := t.TempDir()
		generate(t, filepath.Join(input, "image_sag"), phantomgen.Options{SignalValue: 1000, NoiseSD: 10})
		generate(t, filepath.Join(input, "noise_sag"), phantomgen.Options{NoiseOnly: true, NoiseSD: 12})
		generate(t, filepath.Join(input, "image_tra"), phantomgen.Options{SignalValue: 1000, NoiseSD: 10})
		generate(t, filepath.Join(input, "noise_tra"), phantomgen.Options{NoiseOnly: true, NoiseSD: 12})

		rc := qa.RunContext{
			InputDir:     input,
			Mode:         qa.ModeNEMABody,
			WorkbookPath: filepath.Join(t.TempDir(), "nema_body_metrics.xlsx"),
		}
		result, err := qa.Run(ctx, rc)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Rows != 4 {
			t.Fatalf("rows=%d failures=%+v, want 4", result.Rows, result.Failures)
		}
		rows, err := report.ReadWorkbookRows(rc.WorkbookPath, "NEMA Body")
		if err != nil {
			t.Fatalf("read workbook: %v", err)
		}
		// Both orientations paired: every image row carries a numeric SNR.
		for _, r := range rows[1:] {
			if r[2] == "image" && r[10] == report.Undefined {
				t.Errorf("paired image row %v has undefined SNR", r[0])
			}
		}
	})

	t.Run("torso", func(t *testing.T) {
		input := t.TempDir()
		generate(t, filepath.Join(input, "cor_raw"), phantomgen.Options{SeriesDescription: "t1_se_cor", SignalValue: 1000, NoiseSD: 10})
		generate(t, filepath.Join(input, "cor_norm"), phantomgen.Options{SeriesDescription: "t1_se_cor", SignalValue: 1000, NoiseSD: 10, NormFilter: true})
		generate(t, filepath.Join(input, "cor_noise"), phantomgen.Options{SeriesDescription: "noise_cor", NoiseOnly: true, NoiseSD: 12})
		generate(t, filepath.Join(input, "vpp3"), phantomgen.Options{SeriesDescription: "element", CoilString: "VPP3", SignalValue: 900, NoiseSD: 10})
		generate(t, filepath.Join(input, "vpp3_noise"), phantomgen.Options{SeriesDescription: "element noise", CoilString: "VPP3", NoiseOnly: true, NoiseSD: 12})

		rc := qa.RunContext{
			InputDir:     input,
			Mode:         qa.ModeTorso,
			WorkbookPath: filepath.Join(t.TempDir(), "torso_coil_analysis.xlsx"),
		}
		result, err := qa.Run(ctx, rc)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if result.Rows != 2 {
			t.Fatalf("rows=%d failures=%+v, want combined + element", result.Rows, result.Failures)
		}
		combined, err := report.ReadWorkbookRows(rc.WorkbookPath, "Combined Views")
		if err != nil {
			t.Fatalf("read combined: %v", err)
		}
		if len(combined) != 2 || combined[1][0] != "Coronal" {
			t.Errorf("combined rows = %v", combined)
		}
		individual, err := report.ReadWorkbookRows(rc.WorkbookPath, "Individual Elements")
		if err != nil {
			t.Fatalf("read individual: %v", err)
		}
		if len(individual) != 2 || individual[1][0] != "VPP3" {
			t.Errorf("individual rows = %v", individual)
		}
	})
}
