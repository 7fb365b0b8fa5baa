// Package dicomio discovers and decodes DICOM files into in-memory image
// records for the analysis pipeline. Per-file decode problems are reported
// as DecodeError values and never abort a batch.
package dicomio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// DecodeError reports a file that could not be decoded into an ImageRecord.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// tagCoilString is the Siemens coil-string private tag carrying the coil
// element labels of the acquisition.
var tagCoilString = tag.Tag{Group: 0x0051, Element: 0x100F}

// filePatterns match the recognized DICOM filename extensions
// (case-insensitive; names are lowercased before matching).
var filePatterns = []glob.Glob{
	glob.MustCompile("*.dcm"),
	glob.MustCompile("*.ima"),
}

// hasDICMPreamble reports whether the file carries the 132-byte DICOM
// preamble ending in "DICM".
func hasDICMPreamble(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	preamble := make([]byte, 132)
	if _, err := f.ReadAt(preamble, 0); err != nil {
		return false
	}
	return string(preamble[128:132]) == "DICM"
}

// isCandidate reports whether a file should be treated as DICOM: either a
// recognized extension or a valid preamble.
func isCandidate(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, p := range filePatterns {
		if p.Match(name) {
			return true
		}
	}
	return hasDICMPreamble(path)
}

// ScanDirectory returns the DICOM candidate files directly inside dir,
// sorted by filename.
func ScanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isCandidate(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ScanTree returns all DICOM candidate files under dir recursively, sorted
// by path.
func ScanTree(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isCandidate(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan tree %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Subdirectories returns the paths of the immediate subdirectories of dir,
// sorted.
func Subdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Load decodes a single DICOM file into an ImageRecord. Any failure is
// wrapped in a *DecodeError.
func Load(path string) (*ImageRecord, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	pixelEl, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("missing PixelData: %w", err)}
	}
	info := dicom.MustGetPixelDataInfo(pixelEl.Value)
	if len(info.Frames) == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("PixelData has no frames")}
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("extract frame: %w", err)}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("empty pixel frame")}
	}

	pixels := pixelsFromImage(img)

	// Apply the rescale transform when both tags are present.
	slope, hasSlope := floatValue(&ds, tag.RescaleSlope)
	intercept, hasIntercept := floatValue(&ds, tag.RescaleIntercept)
	if hasSlope && hasIntercept {
		for i := range pixels {
			pixels[i] = pixels[i]*slope + intercept
		}
	}

	rec := &ImageRecord{
		Path:         path,
		Filename:     filepath.Base(path),
		Width:        width,
		Height:       height,
		Pixels:       pixels,
		PixelSpacing: [2]float64{1, 1},
	}

	if spacing, ok := stringValues(&ds, tag.PixelSpacing); ok && len(spacing) >= 2 {
		row, errR := strconv.ParseFloat(strings.TrimSpace(spacing[0]), 64)
		col, errC := strconv.ParseFloat(strings.TrimSpace(spacing[1]), 64)
		if errR == nil && errC == nil && row > 0 && col > 0 {
			rec.PixelSpacing = [2]float64{row, col}
		}
	}

	if loc, ok := floatValue(&ds, tag.SliceLocation); ok {
		rec.SliceLocation = loc
		rec.HasSliceLocation = true
	}
	if num, ok := stringValue(&ds, tag.InstanceNumber); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(num)); err == nil {
			rec.InstanceNumber = n
		}
	}
	if desc, ok := stringValue(&ds, tag.SeriesDescription); ok {
		rec.SeriesDescription = desc
	}
	if types, ok := stringValues(&ds, tag.ImageType); ok {
		rec.ImageType = types
	}
	if coil, ok := stringValue(&ds, tagCoilString); ok {
		for _, label := range strings.Split(coil, ";") {
			if label = strings.TrimSpace(label); label != "" {
				rec.CoilElements = append(rec.CoilElements, label)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"file": rec.Filename,
		"size": fmt.Sprintf("%dx%d", width, height),
	}).Debug("decoded DICOM image")

	return rec, nil
}

// LoadDirectory decodes every DICOM candidate directly inside dir. Files
// that fail to decode are collected as DecodeErrors; the batch continues.
func LoadDirectory(dir string) ([]*ImageRecord, []*DecodeError, error) {
	paths, err := ScanDirectory(dir)
	if err != nil {
		return nil, nil, err
	}
	return loadAll(paths)
}

// LoadTree decodes every DICOM candidate under dir recursively.
func LoadTree(dir string) ([]*ImageRecord, []*DecodeError, error) {
	paths, err := ScanTree(dir)
	if err != nil {
		return nil, nil, err
	}
	return loadAll(paths)
}

func loadAll(paths []string) ([]*ImageRecord, []*DecodeError, error) {
	records := make([]*ImageRecord, 0, len(paths))
	var failures []*DecodeError
	for _, path := range paths {
		rec, err := Load(path)
		if err != nil {
			var de *DecodeError
			if !errors.As(err, &de) {
				de = &DecodeError{Path: path, Err: err}
			}
			logrus.WithField("file", path).WithError(de.Err).Warn("skipping undecodable file")
			failures = append(failures, de)
			continue
		}
		records = append(records, rec)
	}
	return records, failures, nil
}

// pixelsFromImage flattens a decoded frame into float64 values. Native
// DICOM frames decode to Gray16 (or Gray for 8-bit data); anything else is
// converted through the Gray16 color model.
func pixelsFromImage(img image.Image) []float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]float64, width*height)

	switch im := img.(type) {
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixels[y*width+x] = float64(im.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixels[y*width+x] = float64(im.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				pixels[y*width+x] = float64(g.Y)
			}
		}
	}
	return pixels
}

func stringValue(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	values, ok := stringValues(ds, t)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func stringValues(ds *dicom.Dataset, t tag.Tag) ([]string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	values, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil, false
	}
	return values, true
}

func floatValue(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	s, ok := stringValue(ds, t)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
