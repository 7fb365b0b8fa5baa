package qa

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/phantomlab/mriqa/internal/dicomio"
	"github.com/phantomlab/mriqa/internal/report"
	"github.com/phantomlab/mriqa/internal/roi"
)

// RunContext is everything one analysis run needs.
type RunContext struct {
	InputDir     string
	Mode         Mode
	WorkbookPath string
	OverlayPath  string // empty disables the overlay
	Workers      int    // <=0 means one worker per CPU
}

// Failure records one input that was excluded from the results, with the
// pipeline stage that rejected it. Failures never abort the run; report
// IO errors do.
type Failure struct {
	File   string
	Stage  string // decode, load, roi, metrics, pairing
	Reason string
}

// RunResult summarizes a completed run.
type RunResult struct {
	Set          *ResultSet
	Rows         int
	Failures     []Failure
	WorkbookPath string
	OverlayPath  string // empty when no overlay was written
}

// analysis is the internal outcome of one mode's analyzer.
type analysis struct {
	agg            *Aggregator
	overlayRec     *dicomio.ImageRecord
	overlayRegions []roi.Region
	failures       []Failure
}

// Run executes the analysis selected by rc.Mode. The workbook is written
// even when every input failed, so a bad session still leaves a traceable
// artifact; the overlay is written when at least one image was measurable.
func Run(ctx context.Context, rc RunContext) (*RunResult, error) {
	logrus.WithFields(logrus.Fields{
		"mode":  rc.Mode,
		"input": rc.InputDir,
	}).Info("analysis started")

	var (
		out *analysis
		err error
	)
	switch rc.Mode {
	case ModeWeekly:
		out, err = runWeekly(ctx, rc)
	case ModeNEMABody:
		out, err = runNEMABody(ctx, rc)
	case ModeTorso:
		out, err = runTorso(ctx, rc)
	default:
		return nil, fmt.Errorf("unknown analysis mode %v", rc.Mode)
	}
	if err != nil {
		return nil, err
	}

	rs := out.agg.ResultSet()
	for _, f := range out.failures {
		logrus.WithFields(logrus.Fields{
			"file":  f.File,
			"stage": f.Stage,
		}).Warn(f.Reason)
	}

	if err := report.WriteWorkbook(rc.WorkbookPath, rs.Workbook()); err != nil {
		return nil, err
	}

	result := &RunResult{
		Set:          rs,
		Rows:         rs.RowCount(),
		Failures:     out.failures,
		WorkbookPath: rc.WorkbookPath,
	}
	if rc.OverlayPath != "" && out.overlayRec != nil {
		if err := report.WriteOverlay(rc.OverlayPath, out.overlayRec, out.overlayRegions); err != nil {
			return nil, err
		}
		result.OverlayPath = rc.OverlayPath
	}

	logrus.WithFields(logrus.Fields{
		"rows":     result.Rows,
		"failures": len(result.Failures),
	}).Info("analysis finished")
	return result, nil
}
