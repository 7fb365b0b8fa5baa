package roi

import (
	"errors"
	"math"
	"testing"

	"github.com/phantomlab/mriqa/internal/dicomio"
)

// discRecord builds a synthetic slice with a uniform disc on a dark
// background.
func discRecord(width, height, cx, cy int, radius, value, spacing float64) *dicomio.ImageRecord {
	pixels := make([]float64, width*height)
	r2 := radius * radius
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy <= r2 {
				pixels[y*width+x] = value
			}
		}
	}
	return &dicomio.ImageRecord{
		Path:         "synthetic.dcm",
		Filename:     "synthetic.dcm",
		Width:        width,
		Height:       height,
		Pixels:       pixels,
		PixelSpacing: [2]float64{spacing, spacing},
	}
}

func TestDetectPhantom_FindsDisc(t *testing.T) {
	rec := discRecord(128, 128, 64, 60, 40, 1000, 1.5)
	ph, err := DetectPhantom(rec)
	if err != nil {
		t.Fatalf("DetectPhantom: %v", err)
	}
	if ph.CenterX < 62 || ph.CenterX > 66 {
		t.Errorf("CenterX = %d, want ~64", ph.CenterX)
	}
	if ph.CenterY < 58 || ph.CenterY > 62 {
		t.Errorf("CenterY = %d, want ~60", ph.CenterY)
	}
	if math.Abs(ph.Radius-40) > 2 {
		t.Errorf("Radius = %v, want ~40", ph.Radius)
	}
}

func TestDetectPhantom_FlatImage(t *testing.T) {
	rec := &dicomio.ImageRecord{
		Path:         "flat.dcm",
		Filename:     "flat.dcm",
		Width:        64,
		Height:       64,
		Pixels:       make([]float64, 64*64),
		PixelSpacing: [2]float64{1, 1},
	}
	_, err := DetectPhantom(rec)
	var rnf *RegionNotFoundError
	if !errors.As(err, &rnf) {
		t.Fatalf("DetectPhantom on flat image: err = %v, want RegionNotFoundError", err)
	}
}

func TestDetectPhantom_IgnoresSpecks(t *testing.T) {
	rec := discRecord(128, 128, 64, 64, 40, 1000, 1.5)
	// A bright speck far from the phantom must not shift the centroid.
	rec.Pixels[3*128+3] = 1000
	ph, err := DetectPhantom(rec)
	if err != nil {
		t.Fatalf("DetectPhantom: %v", err)
	}
	if ph.CenterX < 62 || ph.CenterX > 66 || ph.CenterY < 62 || ph.CenterY > 66 {
		t.Errorf("centroid (%d,%d) shifted by speck, want ~(64,64)", ph.CenterX, ph.CenterY)
	}
}

func TestPhantomSignalRegion_StaysInsidePhantom(t *testing.T) {
	rec := discRecord(128, 128, 64, 64, 40, 1000, 1.5)
	ph, err := DetectPhantom(rec)
	if err != nil {
		t.Fatalf("DetectPhantom: %v", err)
	}
	region := PhantomSignalRegion(rec, ph)
	if region.Kind != Signal {
		t.Errorf("Kind = %v, want signal", region.Kind)
	}
	// Requested 338 cm^2 would need ~69 px at 1.5 mm spacing; must be
	// capped below the phantom radius.
	if region.Radius > ph.Radius-2+1e-9 {
		t.Errorf("signal radius %v exceeds phantom cap %v", region.Radius, ph.Radius-2)
	}
	// The region sits inside the phantom: background contamination is at
	// most a sliver of boundary pixels.
	values := region.Values(rec)
	background := 0
	for _, v := range values {
		if v != 1000 {
			background++
		}
	}
	if background > len(values)/100 {
		t.Errorf("signal region includes %d/%d background pixels", background, len(values))
	}
}

func TestPhantomSignalRegion_RadiusFromRowSpacing(t *testing.T) {
	rec := discRecord(128, 128, 64, 64, 50, 1000, 1.0)
	// Anisotropic spacing: the radius conversion follows the row spacing.
	rec.PixelSpacing = [2]float64{3.0, 6.0}
	ph, err := DetectPhantom(rec)
	if err != nil {
		t.Fatalf("DetectPhantom: %v", err)
	}
	region := PhantomSignalRegion(rec, ph)
	want := math.Round(math.Sqrt(SignalAreaMM2/math.Pi) / 3.0)
	if region.Radius != want {
		t.Errorf("radius = %v px, want %v (row spacing), not %v (column spacing)",
			region.Radius, want, math.Round(math.Sqrt(SignalAreaMM2/math.Pi)/6.0))
	}
}

func TestCentralNoiseRegion_Geometry(t *testing.T) {
	rec := discRecord(256, 256, 128, 128, 60, 500, 1.5)
	region := CentralNoiseRegion(rec)
	if region.CenterX != 128 || region.CenterY != 128 {
		t.Errorf("center = (%d,%d), want (128,128)", region.CenterX, region.CenterY)
	}
	wantRadius := math.Sqrt(NoiseAreaMM2/math.Pi) / 1.5
	if math.Abs(region.Radius-wantRadius) > 1e-9 {
		t.Errorf("radius = %v, want %v", region.Radius, wantRadius)
	}
	if region.PixelCount() == 0 {
		t.Error("central noise region is empty")
	}
}

func TestPeakSignalRegion_CentersOnPeak(t *testing.T) {
	rec := discRecord(128, 128, 64, 64, 40, 800, 1.5)
	rec.Pixels[50*128+70] = 2000
	region, err := PeakSignalRegion(rec, ElementSignalRadiusMM)
	if err != nil {
		t.Fatalf("PeakSignalRegion: %v", err)
	}
	if region.CenterX != 70 || region.CenterY != 50 {
		t.Errorf("center = (%d,%d), want (70,50)", region.CenterX, region.CenterY)
	}
	values := region.Values(rec)
	foundPeak := false
	for _, v := range values {
		if v == 2000 {
			foundPeak = true
		}
	}
	if !foundPeak {
		t.Error("peak pixel not inside peak region")
	}
}

func TestPeakSignalRegion_NoSignal(t *testing.T) {
	rec := &dicomio.ImageRecord{
		Path:         "dark.dcm",
		Filename:     "dark.dcm",
		Width:        64,
		Height:       64,
		Pixels:       make([]float64, 64*64),
		PixelSpacing: [2]float64{1, 1},
	}
	_, err := PeakSignalRegion(rec, ElementSignalRadiusMM)
	var rnf *RegionNotFoundError
	if !errors.As(err, &rnf) {
		t.Fatalf("err = %v, want RegionNotFoundError", err)
	}
}

func TestCornerNoiseRegion_ExcludesPhantom(t *testing.T) {
	rec := discRecord(128, 128, 64, 64, 40, 1000, 1.5)
	ph, err := DetectPhantom(rec)
	if err != nil {
		t.Fatalf("DetectPhantom: %v", err)
	}
	region, err := CornerNoiseRegion(rec, ph)
	if err != nil {
		t.Fatalf("CornerNoiseRegion: %v", err)
	}
	if region.Kind != Noise {
		t.Errorf("Kind = %v, want noise", region.Kind)
	}
	for _, v := range region.Values(rec) {
		if v != 0 {
			t.Fatalf("corner noise region includes phantom pixel value %v", v)
		}
	}
	// Four 16x16 patches on a 128 image.
	if got := region.PixelCount(); got != 4*16*16 {
		t.Errorf("PixelCount = %d, want %d", got, 4*16*16)
	}
}
