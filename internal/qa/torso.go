package qa

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/phantomlab/mriqa/internal/dicomio"
	"github.com/phantomlab/mriqa/internal/metrics"
	"github.com/phantomlab/mriqa/internal/roi"
)

const (
	combinedGroup   = "Combined Views"
	individualGroup = "Individual Elements"
)

var (
	combinedHeader   = []string{"Region", "Signal Max", "Signal Min", "Signal Mean", "Noise SD", "SNR", "Uniformity"}
	individualHeader = []string{"Element", "Signal Mean", "Noise SD", "SNR"}

	// torsoElements is the full element set of the torso array, in report
	// order: ventral/dorsal anterior-posterior groups, three channels each.
	torsoElements = []string{
		"VAS1", "VAS2", "VAS3",
		"VPS1", "VPS2", "VPS3",
		"VAP1", "VAP2", "VAP3",
		"VPP1", "VPP2", "VPP3",
	}

	torsoOrientations = []struct {
		key     string
		display string
	}{
		{"sag", "Sagittal"},
		{"tra", "Transverse"},
		{"cor", "Coronal"},
	}
)

// torsoScan is one classified torso acquisition.
type torsoScan struct {
	rec         *dicomio.ImageRecord
	element     string // single coil element label, empty for combined views
	orientation string // sag/tra/cor, from the series description
	noise       bool
	norm        bool // normalization filter applied
}

// classifyTorsoScan derives the scan role from DICOM metadata: the coil
// string names the receiving elements, the series description carries the
// orientation and noise marker, and the image type carries the NORM flag.
func classifyTorsoScan(rec *dicomio.ImageRecord) torsoScan {
	scan := torsoScan{rec: rec}

	if len(rec.CoilElements) == 1 {
		label := strings.ToUpper(strings.TrimSpace(rec.CoilElements[0]))
		for _, e := range torsoElements {
			if label == e {
				scan.element = label
				break
			}
		}
	}

	desc := strings.ToLower(rec.SeriesDescription)
	switch {
	case strings.Contains(desc, "sag"):
		scan.orientation = "sag"
	case strings.Contains(desc, "tra"):
		scan.orientation = "tra"
	case strings.Contains(desc, "cor"):
		scan.orientation = "cor"
	}

	scan.noise = strings.Contains(desc, "noise") ||
		strings.Contains(strings.ToLower(rec.Filename), "noise")

	for _, it := range rec.ImageType {
		if it == "NORM" {
			scan.norm = true
			break
		}
	}
	return scan
}

// runTorso measures the torso array acceptance scans across the whole
// input tree: combined views per orientation (norm-off signal against a
// noise scan, uniformity from the norm-on repeat) and each individual
// element at its intensity peak.
func runTorso(ctx context.Context, rc RunContext) (*analysis, error) {
	records, decodeErrs, err := dicomio.LoadTree(rc.InputDir)
	if err != nil {
		return nil, err
	}

	out := &analysis{agg: NewAggregator(ModeTorso)}
	for _, de := range decodeErrs {
		out.failures = append(out.failures, Failure{File: de.Path, Stage: "decode", Reason: de.Err.Error()})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scans := make([]torsoScan, 0, len(records))
	for _, rec := range records {
		scans = append(scans, classifyTorsoScan(rec))
	}

	// Sheets appear in fixed order even when one ends up empty.
	out.agg.Group(combinedGroup, combinedHeader)
	out.agg.Group(individualGroup, individualHeader)

	if err := torsoCombined(out, scans); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := torsoIndividual(out, scans); err != nil {
		return nil, err
	}
	return out, nil
}

func torsoCombined(out *analysis, scans []torsoScan) error {
	// pick returns the first combined-view scan matching the predicate.
	pick := func(match func(torsoScan) bool) *torsoScan {
		for i := range scans {
			if scans[i].element == "" && match(scans[i]) {
				return &scans[i]
			}
		}
		return nil
	}

	for _, orientation := range torsoOrientations {
		o := orientation.key
		normOff := pick(func(s torsoScan) bool { return s.orientation == o && !s.noise && !s.norm })
		// Only the unfiltered noise acquisition pairs with the view; a
		// norm-filtered noise series has a reshaped noise floor.
		noiseScan := pick(func(s torsoScan) bool { return s.orientation == o && s.noise && !s.norm })
		normOn := pick(func(s torsoScan) bool { return s.orientation == o && !s.noise && s.norm })

		if normOff == nil || noiseScan == nil {
			out.failures = append(out.failures, Failure{
				File:   orientation.display,
				Stage:  "pairing",
				Reason: "combined view needs an unfiltered image and a noise scan",
			})
			continue
		}

		ph, err := roi.DetectPhantom(normOff.rec)
		if err != nil {
			out.failures = append(out.failures, Failure{File: normOff.rec.Path, Stage: "roi", Reason: err.Error()})
			continue
		}
		signal := roi.PhantomSignalRegion(normOff.rec, ph)
		sig, err := metrics.Compute(signal.Values(normOff.rec))
		if err != nil {
			out.failures = append(out.failures, Failure{File: normOff.rec.Path, Stage: "metrics", Reason: err.Error()})
			continue
		}

		noiseRegion := roi.CentralNoiseRegion(noiseScan.rec)
		noi, err := metrics.Compute(noiseRegion.Values(noiseScan.rec))
		if err != nil {
			out.failures = append(out.failures, Failure{File: noiseScan.rec.Path, Stage: "metrics", Reason: err.Error()})
			continue
		}

		snr := metrics.SNR(sig.Mean, noi.StdDev, metrics.SNRCombined)

		// Uniformity and the reported signal statistics come from the
		// normalization-filtered repeat, which flattens the coil profile.
		var uni metrics.Stats
		piu := metrics.Undefined()
		if normOn != nil {
			if uph, err := roi.DetectPhantom(normOn.rec); err == nil {
				uregion := roi.PhantomSignalRegion(normOn.rec, uph)
				if ustats, err := metrics.Compute(uregion.Values(normOn.rec)); err == nil {
					uni = ustats
					piu = metrics.PIU(ustats.Max, ustats.Min)
				}
			}
		}
		if !piu.Defined {
			logrus.WithField("orientation", orientation.display).
				Warn("no usable normalization-filtered image, uniformity not computed")
		}

		row := Row{
			Key:   normOff.rec.Filename + "|combined|" + o,
			Cells: []any{orientation.display, uni.Max, uni.Min, uni.Mean, noi.StdDev, cell(snr), cell(piu)},
		}
		if err := out.agg.Add(combinedGroup, combinedHeader, row); err != nil {
			return err
		}
		if out.overlayRec == nil {
			out.overlayRec = normOff.rec
			out.overlayRegions = []roi.Region{signal}
		}
	}
	return nil
}

func torsoIndividual(out *analysis, scans []torsoScan) error {
	// First scan per (element, noise) pair wins; repeats are logged and
	// ignored so a re-acquired element does not abort the run.
	images := make(map[string]*torsoScan)
	noises := make(map[string]*torsoScan)
	for i := range scans {
		s := &scans[i]
		if s.element == "" {
			continue
		}
		m := images
		if s.noise {
			m = noises
		}
		if prev, ok := m[s.element]; ok {
			logrus.WithFields(logrus.Fields{
				"element": s.element,
				"kept":    prev.rec.Filename,
				"ignored": s.rec.Filename,
			}).Warn("duplicate element scan ignored")
			continue
		}
		m[s.element] = s
	}

	for _, element := range torsoElements {
		img, ok := images[element]
		if !ok {
			continue
		}
		noiseScan, ok := noises[element]
		if !ok {
			out.failures = append(out.failures, Failure{
				File:   img.rec.Path,
				Stage:  "pairing",
				Reason: "element " + element + " has no noise scan",
			})
			continue
		}

		peak, err := roi.PeakSignalRegion(img.rec, roi.ElementSignalRadiusMM)
		if err != nil {
			out.failures = append(out.failures, Failure{File: img.rec.Path, Stage: "roi", Reason: err.Error()})
			continue
		}
		sig, err := metrics.Compute(peak.Values(img.rec))
		if err != nil {
			out.failures = append(out.failures, Failure{File: img.rec.Path, Stage: "metrics", Reason: err.Error()})
			continue
		}

		noiseRegion := roi.CentralNoiseRegion(noiseScan.rec)
		noi, err := metrics.Compute(noiseRegion.Values(noiseScan.rec))
		if err != nil {
			out.failures = append(out.failures, Failure{File: noiseScan.rec.Path, Stage: "metrics", Reason: err.Error()})
			continue
		}

		snr := metrics.SNR(sig.Mean, noi.StdDev, metrics.SNRPaired)
		row := Row{
			Key:   img.rec.Filename + "|element|" + element,
			Cells: []any{element, sig.Mean, noi.StdDev, cell(snr)},
		}
		if err := out.agg.Add(individualGroup, individualHeader, row); err != nil {
			return err
		}
		if out.overlayRec == nil {
			out.overlayRec = img.rec
			out.overlayRegions = []roi.Region{peak}
		}
	}
	return nil
}
