package qa

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/phantomlab/mriqa/internal/dicomio"
	"github.com/phantomlab/mriqa/internal/metrics"
	"github.com/phantomlab/mriqa/internal/roi"
)

var weeklyHeader = []string{"Filename", "Mean", "Min", "Max", "Sum", "StDev", "SNR", "PIU"}

// weeklyOutcome carries one slice's analysis back from the worker pool,
// indexed so output order matches input order regardless of scheduling.
type weeklyOutcome struct {
	row     *Row
	failure *Failure

	rec     *dicomio.ImageRecord
	regions []roi.Region
	// score ranks overlay candidates: smallest |slice location| wins,
	// brighter image breaks ties.
	score [2]float64
}

// runWeekly measures every slice in the input directory: phantom signal
// circle against pooled corner noise, one workbook row per image. The
// slice closest to the scanner origin provides the ROI overlay.
func runWeekly(ctx context.Context, rc RunContext) (*analysis, error) {
	records, decodeErrs, err := dicomio.LoadDirectory(rc.InputDir)
	if err != nil {
		return nil, err
	}

	out := &analysis{agg: NewAggregator(ModeWeekly)}
	for _, de := range decodeErrs {
		out.failures = append(out.failures, Failure{File: de.Path, Stage: "decode", Reason: de.Err.Error()})
	}

	workers := rc.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(records) {
		workers = len(records)
	}

	outcomes := make([]weeklyOutcome, len(records))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = analyzeWeeklySlice(records[i])
			}
		}()
	}

feed:
	for i := range records {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := -1
	for i := range outcomes {
		oc := &outcomes[i]
		if oc.failure != nil {
			out.failures = append(out.failures, *oc.failure)
			continue
		}
		if err := out.agg.Add("weekly", weeklyHeader, *oc.row); err != nil {
			return nil, err
		}
		if best == -1 || less(oc.score, outcomes[best].score) {
			best = i
		}
	}
	if best >= 0 {
		out.overlayRec = outcomes[best].rec
		out.overlayRegions = outcomes[best].regions
	}
	return out, nil
}

func less(a, b [2]float64) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

func analyzeWeeklySlice(rec *dicomio.ImageRecord) weeklyOutcome {
	oc := weeklyOutcome{rec: rec}

	ph, err := roi.DetectPhantom(rec)
	if err != nil {
		oc.failure = &Failure{File: rec.Path, Stage: "roi", Reason: err.Error()}
		return oc
	}
	signal := roi.PhantomSignalRegion(rec, ph)
	noise, err := roi.CornerNoiseRegion(rec, ph)
	if err != nil {
		oc.failure = &Failure{File: rec.Path, Stage: "roi", Reason: err.Error()}
		return oc
	}

	sig, err := metrics.Compute(signal.Values(rec))
	if err != nil {
		oc.failure = &Failure{File: rec.Path, Stage: "metrics", Reason: err.Error()}
		return oc
	}
	noi, err := metrics.Compute(noise.Values(rec))
	if err != nil {
		oc.failure = &Failure{File: rec.Path, Stage: "metrics", Reason: err.Error()}
		return oc
	}

	snr := metrics.SNR(sig.Mean, noi.StdDev, metrics.SNRWeekly)
	piu := metrics.PIU(sig.Max, sig.Min)
	logrus.WithFields(logrus.Fields{
		"file": rec.Filename,
		"mean": sig.Mean,
	}).Debug("weekly slice measured")

	oc.row = &Row{
		Key:   rec.Filename + "|signal",
		Cells: []any{rec.Filename, sig.Mean, sig.Min, sig.Max, sig.Sum, sig.StdDev, cell(snr), cell(piu)},
	}
	oc.regions = []roi.Region{signal, noise}

	absSlice := math.Inf(1)
	if rec.HasSliceLocation {
		absSlice = math.Abs(rec.SliceLocation)
	}
	oc.score = [2]float64{absSlice, -sig.Mean}
	return oc
}
