package qa

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/phantomlab/mriqa/internal/dicomio"
	"github.com/phantomlab/mriqa/internal/metrics"
	"github.com/phantomlab/mriqa/internal/roi"
)

var nemaHeader = []string{
	"ScanID", "Orientation", "Type",
	"Mean", "Min", "Max", "Sum", "StDev",
	"Filename", "Slice", "SNR", "PIU",
}

// Canonical NEMA output order.
var (
	nemaOrientations = []string{"Sagi", "Coronal", "Trans"}
	nemaScanTypes    = []string{"image", "noise"}
)

// parseScanLabel classifies a NEMA acquisition label: scans are named
// image_* or noise_* with the orientation embedded (sag, cor, tra; "tans"
// appears in older exports as a typo for trans).
func parseScanLabel(label string) (scanType, orientation string, ok bool) {
	l := strings.ToLower(label)
	switch {
	case strings.HasPrefix(l, "image"):
		scanType = "image"
	case strings.HasPrefix(l, "noise"):
		scanType = "noise"
	default:
		return "", "", false
	}
	switch {
	case strings.Contains(l, "sag"):
		orientation = "Sagi"
	case strings.Contains(l, "cor"):
		orientation = "Coronal"
	case strings.Contains(l, "tra"), strings.Contains(l, "tans"):
		orientation = "Trans"
	default:
		return "", "", false
	}
	return scanType, orientation, true
}

// nemaScan is one classified acquisition ready for measurement.
type nemaScan struct {
	scanID      string
	orientation string
	scanType    string
	rec         *dicomio.ImageRecord
}

// runNEMABody measures the body coil acceptance scans. Acquisitions may
// sit one-per-subdirectory (first readable slice represents the scan) or
// flat in the input directory. Image scans are paired with the noise scan
// of the same orientation for SNR; noise rows report statistics only.
func runNEMABody(ctx context.Context, rc RunContext) (*analysis, error) {
	out := &analysis{agg: NewAggregator(ModeNEMABody)}

	scans, err := collectNEMAScans(rc.InputDir, out)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type measured struct {
		scan   nemaScan
		stats  metrics.Stats
		region roi.Region
	}
	byKey := make(map[string][]measured)
	for _, scan := range scans {
		var region roi.Region
		if scan.scanType == "noise" {
			region = roi.CentralNoiseRegion(scan.rec)
		} else {
			ph, err := roi.DetectPhantom(scan.rec)
			if err != nil {
				out.failures = append(out.failures, Failure{File: scan.rec.Path, Stage: "roi", Reason: err.Error()})
				continue
			}
			region = roi.PhantomSignalRegion(scan.rec, ph)
		}
		stats, err := metrics.Compute(region.Values(scan.rec))
		if err != nil {
			out.failures = append(out.failures, Failure{File: scan.rec.Path, Stage: "metrics", Reason: err.Error()})
			continue
		}
		key := scan.orientation + "|" + scan.scanType
		byKey[key] = append(byKey[key], measured{scan: scan, stats: stats, region: region})
	}

	for _, orientation := range nemaOrientations {
		// First noise scan of the orientation supplies the SD for pairing.
		var noiseSD float64
		havePair := false
		if noises := byKey[orientation+"|noise"]; len(noises) > 0 {
			noiseSD = noises[0].stats.StdDev
			havePair = true
		}

		for _, scanType := range nemaScanTypes {
			key := orientation + "|" + scanType
			for _, m := range byKey[key] {
				snr := metrics.Undefined()
				piu := metrics.Undefined()
				if scanType == "image" {
					if havePair {
						snr = metrics.SNR(m.stats.Mean, noiseSD, metrics.SNRPaired)
					} else {
						logrus.WithFields(logrus.Fields{
							"orientation": orientation,
							"file":        m.scan.rec.Filename,
						}).Warn("no noise scan for orientation, SNR not computed")
					}
					piu = metrics.PIU(m.stats.Max, m.stats.Min)
				}

				slice := any("")
				if m.scan.rec.HasSliceLocation {
					slice = m.scan.rec.SliceLocation
				}
				row := Row{
					Key: m.scan.rec.Filename + "|" + m.scan.scanID,
					Cells: []any{
						m.scan.scanID, orientation, scanType,
						m.stats.Mean, m.stats.Min, m.stats.Max, m.stats.Sum, m.stats.StdDev,
						m.scan.rec.Filename, slice, cell(snr), cell(piu),
					},
				}
				if err := out.agg.Add(key, nemaHeader, row); err != nil {
					return nil, err
				}
				if out.overlayRec == nil && scanType == "image" {
					out.overlayRec = m.scan.rec
					out.overlayRegions = []roi.Region{m.region}
				}
			}
		}
	}
	return out, nil
}

// collectNEMAScans gathers acquisitions from subdirectories when present,
// otherwise from the files of the input directory itself.
func collectNEMAScans(inputDir string, out *analysis) ([]nemaScan, error) {
	subdirs, err := dicomio.Subdirectories(inputDir)
	if err != nil {
		return nil, err
	}

	var scans []nemaScan
	if len(subdirs) > 0 {
		for _, dir := range subdirs {
			label := filepath.Base(dir)
			scanType, orientation, ok := parseScanLabel(label)
			if !ok {
				out.failures = append(out.failures, Failure{File: dir, Stage: "classify",
					Reason: "directory name does not identify a scan"})
				continue
			}
			records, decodeErrs, err := dicomio.LoadDirectory(dir)
			if err != nil {
				return nil, err
			}
			for _, de := range decodeErrs {
				out.failures = append(out.failures, Failure{File: de.Path, Stage: "decode", Reason: de.Err.Error()})
			}
			if len(records) == 0 {
				out.failures = append(out.failures, Failure{File: dir, Stage: "load", Reason: "no readable DICOM files"})
				continue
			}
			scans = append(scans, nemaScan{
				scanID:      label,
				orientation: orientation,
				scanType:    scanType,
				rec:         records[0],
			})
		}
		return scans, nil
	}

	records, decodeErrs, err := dicomio.LoadDirectory(inputDir)
	if err != nil {
		return nil, err
	}
	for _, de := range decodeErrs {
		out.failures = append(out.failures, Failure{File: de.Path, Stage: "decode", Reason: de.Err.Error()})
	}
	for _, rec := range records {
		label := strings.TrimSuffix(rec.Filename, filepath.Ext(rec.Filename))
		scanType, orientation, ok := parseScanLabel(label)
		if !ok {
			out.failures = append(out.failures, Failure{File: rec.Path, Stage: "classify",
				Reason: "filename does not identify a scan"})
			continue
		}
		scans = append(scans, nemaScan{
			scanID:      label,
			orientation: orientation,
			scanType:    scanType,
			rec:         rec,
		})
	}
	return scans, nil
}
