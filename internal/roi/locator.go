// Package roi locates phantom regions of interest on decoded MRI slices:
// the phantom body itself, signal ROIs sized in physical units, and noise
// ROIs (central circle or corner patches).
package roi

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/phantomlab/mriqa/internal/dicomio"
)

// ROI sizing constants. Areas follow the NEMA body phantom procedure the
// site runs: a 338 cm^2 signal circle inside the phantom and a 340 cm^2
// noise circle; individual coil elements are probed with a 3 mm circle at
// the intensity peak.
const (
	SignalAreaMM2         = 338 * 100
	NoiseAreaMM2          = 340 * 100
	ElementSignalRadiusMM = 3.0

	// minObjectPixels is the smallest connected component kept when
	// separating the phantom from background noise specks.
	minObjectPixels = 500
)

// Kind tells signal regions from noise regions.
type Kind int

const (
	Signal Kind = iota
	Noise
)

func (k Kind) String() string {
	if k == Noise {
		return "noise"
	}
	return "signal"
}

// Region is a named pixel mask over one ImageRecord's grid.
type Region struct {
	Name string
	Kind Kind

	Mask   []bool
	Width  int
	Height int

	// Circle geometry when the region is circular (zero radius for
	// rectangular patch regions). Kept for logging and overlay labels.
	CenterX int
	CenterY int
	Radius  float64
}

// Values extracts the pixel values covered by the region mask.
func (r *Region) Values(rec *dicomio.ImageRecord) []float64 {
	values := make([]float64, 0, r.PixelCount())
	for i, in := range r.Mask {
		if in {
			values = append(values, rec.Pixels[i])
		}
	}
	return values
}

// PixelCount returns the number of pixels inside the region.
func (r *Region) PixelCount() int {
	n := 0
	for _, in := range r.Mask {
		if in {
			n++
		}
	}
	return n
}

// RegionNotFoundError reports that the ROI heuristic could not place a
// region on an image; the image is excluded from the run with this reason.
type RegionNotFoundError struct {
	Path   string
	Reason string
}

func (e *RegionNotFoundError) Error() string {
	return fmt.Sprintf("region not found in %s: %s", e.Path, e.Reason)
}

// Phantom describes the detected phantom body on one slice.
type Phantom struct {
	CenterX int
	CenterY int
	Radius  float64
	Area    int
}

// DetectPhantom separates the phantom from background by Otsu thresholding,
// removes small specks and takes the largest connected component. Its
// centroid and equivalent-circle radius describe the phantom.
func DetectPhantom(rec *dicomio.ImageRecord) (Phantom, error) {
	threshold, ok := Otsu(rec.Pixels)
	if !ok {
		return Phantom{}, &RegionNotFoundError{Path: rec.Path, Reason: "image has no intensity contrast"}
	}

	mask := make([]bool, len(rec.Pixels))
	for i, v := range rec.Pixels {
		mask[i] = v > threshold
	}
	mask = RemoveSmallObjects(mask, rec.Width, rec.Height, minObjectPixels)

	labels, n := Label(mask, rec.Width, rec.Height)
	if n == 0 {
		return Phantom{}, &RegionNotFoundError{Path: rec.Path, Reason: "no phantom object above threshold"}
	}

	areas := make([]int, n+1)
	sumX := make([]float64, n+1)
	sumY := make([]float64, n+1)
	for i, l := range labels {
		if l == 0 {
			continue
		}
		areas[l]++
		sumX[l] += float64(i % rec.Width)
		sumY[l] += float64(i / rec.Width)
	}
	largest := 1
	for l := 2; l <= n; l++ {
		if areas[l] > areas[largest] {
			largest = l
		}
	}

	area := areas[largest]
	ph := Phantom{
		CenterX: int(sumX[largest] / float64(area)),
		CenterY: int(sumY[largest] / float64(area)),
		Radius:  math.Sqrt(float64(area) / math.Pi),
		Area:    area,
	}
	logrus.WithFields(logrus.Fields{
		"file":   rec.Filename,
		"center": fmt.Sprintf("(%d,%d)", ph.CenterX, ph.CenterY),
		"radius": fmt.Sprintf("%.1f", ph.Radius),
	}).Debug("phantom detected")
	return ph, nil
}

// circleMask fills a circular mask of the given radius in pixels.
func circleMask(width, height, cx, cy int, radius float64) []bool {
	mask := make([]bool, width*height)
	r2 := radius * radius
	for y := 0; y < height; y++ {
		dy := float64(y - cy)
		for x := 0; x < width; x++ {
			dx := float64(x - cx)
			if dx*dx+dy*dy <= r2 {
				mask[y*width+x] = true
			}
		}
	}
	return mask
}

// PhantomSignalRegion places the standard signal circle (SignalAreaMM2)
// inside the detected phantom: centered on the phantom centroid (shifted
// two rows down, as the phantom's fill neck distorts the top edge), with
// the radius capped so the circle stays inside the phantom boundary.
func PhantomSignalRegion(rec *dicomio.ImageRecord, ph Phantom) Region {
	radiusMM := math.Sqrt(SignalAreaMM2 / math.Pi)
	radiusPx := math.Round(radiusMM / rec.PixelSpacing[0])
	if radiusPx < 1 {
		radiusPx = 1
	}

	centerY := ph.CenterY + 2
	if maxY := rec.Height - int(radiusPx) - 1; centerY > maxY {
		centerY = maxY
	}
	if capped := ph.Radius - 2; radiusPx > capped {
		radiusPx = capped
	}
	if radiusPx < 1 {
		logrus.WithField("file", rec.Filename).Warn("signal ROI radius collapsed, using 1 pixel")
		radiusPx = 1
	}

	return Region{
		Name:    "signal",
		Kind:    Signal,
		Mask:    circleMask(rec.Width, rec.Height, ph.CenterX, centerY, radiusPx),
		Width:   rec.Width,
		Height:  rec.Height,
		CenterX: ph.CenterX,
		CenterY: centerY,
		Radius:  radiusPx,
	}
}

// CentralNoiseRegion places the fixed-area noise circle (NoiseAreaMM2) at
// the image center. Used on dedicated noise acquisitions, where the whole
// frame is noise.
func CentralNoiseRegion(rec *dicomio.ImageRecord) Region {
	radiusMM := math.Sqrt(NoiseAreaMM2 / math.Pi)
	radiusPx := radiusMM / rec.AvgSpacing()
	cx, cy := rec.Width/2, rec.Height/2

	return Region{
		Name:    "noise",
		Kind:    Noise,
		Mask:    circleMask(rec.Width, rec.Height, cx, cy, radiusPx),
		Width:   rec.Width,
		Height:  rec.Height,
		CenterX: cx,
		CenterY: cy,
		Radius:  radiusPx,
	}
}

// PeakSignalRegion places a small circle (radiusMM) on the brightest
// positive pixel, clamped so the circle plus a safety margin stays inside
// the frame. Used for individual coil element measurements.
func PeakSignalRegion(rec *dicomio.ImageRecord, radiusMM float64) (Region, error) {
	radiusPx := radiusMM / rec.AvgSpacing()

	cx, cy := rec.Width/2, rec.Height/2
	best := math.Inf(-1)
	found := false
	for i, v := range rec.Pixels {
		if v > 0 && v > best {
			best = v
			cx, cy = i%rec.Width, i/rec.Width
			found = true
		}
	}
	if !found {
		return Region{}, &RegionNotFoundError{Path: rec.Path, Reason: "no positive signal for peak ROI"}
	}

	margin := int(radiusPx) + 5
	cx = clamp(cx, margin, rec.Width-margin)
	cy = clamp(cy, margin, rec.Height-margin)

	return Region{
		Name:    "signal",
		Kind:    Signal,
		Mask:    circleMask(rec.Width, rec.Height, cx, cy, radiusPx),
		Width:   rec.Width,
		Height:  rec.Height,
		CenterX: cx,
		CenterY: cy,
		Radius:  radiusPx,
	}, nil
}

// CornerNoiseRegion builds four corner patches outside the phantom
// boundary, pooled as one noise sample. Patch side is an eighth of the
// short image dimension (at least 8 px), inset 4 px from the edges;
// pixels inside the phantom circle are excluded.
func CornerNoiseRegion(rec *dicomio.ImageRecord, ph Phantom) (Region, error) {
	short := rec.Width
	if rec.Height < short {
		short = rec.Height
	}
	side := short / 8
	if side < 8 {
		side = 8
	}
	const inset = 4

	mask := make([]bool, rec.Width*rec.Height)
	corners := [4][2]int{
		{inset, inset},
		{rec.Width - inset - side, inset},
		{inset, rec.Height - inset - side},
		{rec.Width - inset - side, rec.Height - inset - side},
	}
	r2 := ph.Radius * ph.Radius
	count := 0
	for _, c := range corners {
		for y := c[1]; y < c[1]+side; y++ {
			if y < 0 || y >= rec.Height {
				continue
			}
			for x := c[0]; x < c[0]+side; x++ {
				if x < 0 || x >= rec.Width {
					continue
				}
				dx := float64(x - ph.CenterX)
				dy := float64(y - ph.CenterY)
				if dx*dx+dy*dy <= r2 {
					continue
				}
				mask[y*rec.Width+x] = true
				count++
			}
		}
	}
	if count == 0 {
		return Region{}, &RegionNotFoundError{Path: rec.Path, Reason: "phantom covers all corner noise patches"}
	}

	return Region{
		Name:   "noise",
		Kind:   Noise,
		Mask:   mask,
		Width:  rec.Width,
		Height: rec.Height,
	}, nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
