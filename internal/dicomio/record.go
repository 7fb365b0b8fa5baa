package dicomio

// ImageRecord is one decoded DICOM slice. It is immutable once loaded and
// lives only for the duration of the analysis run that created it.
type ImageRecord struct {
	Path     string
	Filename string

	Width  int
	Height int
	// Pixels holds the frame in row-major order with the rescale slope and
	// intercept already applied.
	Pixels []float64

	// PixelSpacing is {row, column} spacing in millimetres; defaults to
	// {1, 1} when the tag is absent.
	PixelSpacing [2]float64

	SliceLocation    float64
	HasSliceLocation bool
	InstanceNumber   int

	SeriesDescription string
	ImageType         []string
	// CoilElements holds the coil element labels from the Siemens
	// coil-string private tag (0051,100F), split on ';'.
	CoilElements []string
}

// At returns the pixel value at column x, row y.
func (r *ImageRecord) At(x, y int) float64 {
	return r.Pixels[y*r.Width+x]
}

// MeanIntensity returns the mean over all pixels. Used for best-slice
// selection, where a rough value is fine and NaNs are absent by
// construction.
func (r *ImageRecord) MeanIntensity() float64 {
	if len(r.Pixels) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.Pixels {
		sum += v
	}
	return sum / float64(len(r.Pixels))
}

// AvgSpacing returns the average of the row and column pixel spacing.
func (r *ImageRecord) AvgSpacing() float64 {
	return (r.PixelSpacing[0] + r.PixelSpacing[1]) / 2
}
