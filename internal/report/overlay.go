package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/phantomlab/mriqa/internal/dicomio"
	"github.com/phantomlab/mriqa/internal/roi"
)

var (
	signalColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	noiseColor  = color.RGBA{R: 255, G: 80, B: 80, A: 255}
)

// WriteOverlay renders the slice as grayscale with every region's outline
// and name drawn on top, and writes it as PNG.
func WriteOverlay(path string, rec *dicomio.ImageRecord, regions []roi.Region) error {
	img := grayscaleBase(rec)

	for _, region := range regions {
		c := signalColor
		if region.Kind == roi.Noise {
			c = noiseColor
		}
		drawOutline(img, &region, c)
		drawLabel(img, &region, c)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlay %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode overlay %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"path":    path,
		"regions": len(regions),
	}).Info("overlay written")
	return nil
}

// grayscaleBase maps the record's intensity range onto 0..255 gray.
func grayscaleBase(rec *dicomio.ImageRecord) *image.RGBA {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range rec.Pixels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	img := image.NewRGBA(image.Rect(0, 0, rec.Width, rec.Height))
	for y := 0; y < rec.Height; y++ {
		for x := 0; x < rec.Width; x++ {
			v := rec.At(x, y)
			g := uint8(0)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				g = uint8((v - lo) * scale)
			}
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

// drawOutline colors every mask pixel that borders a pixel outside the
// mask, tracing the region boundary.
func drawOutline(img *image.RGBA, region *roi.Region, c color.RGBA) {
	w, h := region.Width, region.Height
	at := func(x, y int) bool {
		if x < 0 || x >= w || y < 0 || y >= h {
			return false
		}
		return region.Mask[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !at(x, y) {
				continue
			}
			if !at(x-1, y) || !at(x+1, y) || !at(x, y-1) || !at(x, y+1) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawLabel writes the region name near its center (or the top-left mask
// pixel for patch regions without a circle center).
func drawLabel(img *image.RGBA, region *roi.Region, c color.RGBA) {
	if region.Name == "" {
		return
	}
	x, y := region.CenterX, region.CenterY
	if x == 0 && y == 0 {
		for i, in := range region.Mask {
			if in {
				x, y = i%region.Width, i/region.Width
				break
			}
		}
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+3, y-3),
	}
	d.DrawString(region.Name)
}
