// Package phantomgen writes synthetic phantom DICOM series: a uniform disc
// with Gaussian noise, or pure-noise frames, with the tags the analysis
// pipeline reads (pixel spacing, slice location, series description,
// image type, coil string). It backs the `synth` command and serves the
// test suite as its fixture factory.
package phantomgen

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mrImageStorageUID is the SOP class for MR Image Storage.
const mrImageStorageUID = "1.2.840.10008.5.1.4.1.1.4"

// tagCoilString is the Siemens coil-string private tag.
var tagCoilString = tag.Tag{Group: 0x0051, Element: 0x100F}

// Options controls one synthetic series.
type Options struct {
	OutputDir string
	NumImages int

	Width  int // default 128
	Height int // default 128

	PixelSpacingMM float64 // default 1.5
	SliceSpacingMM float64 // default 5.0

	// SignalValue is the disc intensity; NoiseOnly frames skip the disc.
	SignalValue float64 // default 1000
	NoiseSD     float64 // Gaussian sigma added to every pixel
	// PhantomFraction is the disc radius as a fraction of the short
	// dimension. Default 0.4.
	PhantomFraction float64
	NoiseOnly       bool

	SeriesDescription string // default "qa phantom"
	CoilString        string // written to (0051,100F) when set
	NormFilter        bool   // appends NORM to ImageType
	FilePrefix        string // default "IMG"

	Seed int64
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.NumImages <= 0 {
		o.NumImages = 1
	}
	if o.Width <= 0 {
		o.Width = 128
	}
	if o.Height <= 0 {
		o.Height = 128
	}
	if o.PixelSpacingMM <= 0 {
		o.PixelSpacingMM = 1.5
	}
	if o.SliceSpacingMM <= 0 {
		o.SliceSpacingMM = 5.0
	}
	if o.SignalValue <= 0 {
		o.SignalValue = 1000
	}
	if o.PhantomFraction <= 0 {
		o.PhantomFraction = 0.4
	}
	if o.SeriesDescription == "" {
		o.SeriesDescription = "qa phantom"
	}
	if o.FilePrefix == "" {
		o.FilePrefix = "IMG"
	}
	return o
}

// deterministicUID derives a reproducible UID from a name, so repeated
// runs over the same output directory produce identical identifiers.
func deterministicUID(name string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name)) // hash.Write never returns an error
	return fmt.Sprintf("2.25.%d", h.Sum64())
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// mustNewPrivateElement creates an element with a private tag and explicit
// VR; dicom.NewElement fails on unregistered private tags.
func mustNewPrivateElement(t tag.Tag, rawVR string, data any) *dicom.Element {
	value, err := dicom.NewValue(data)
	if err != nil {
		panic(fmt.Sprintf("failed to create value for private element %v: %v", t, err))
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}
}

// writeDatasetToFile writes a DICOM dataset to a file.
func writeDatasetToFile(filename string, ds dicom.Dataset) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds)
}

// Generate writes the series and returns the created file paths in order.
func Generate(opts Options) ([]string, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(opts.OutputDir))
		seed = int64(h.Sum64())
	}

	studyUID := deterministicUID(fmt.Sprintf("%s_study", opts.OutputDir))
	seriesUID := deterministicUID(fmt.Sprintf("%s_series_%s", opts.OutputDir, opts.SeriesDescription))

	paths := make([]string, 0, opts.NumImages)
	for i := 1; i <= opts.NumImages; i++ {
		filename := fmt.Sprintf("%s%04d.dcm", opts.FilePrefix, i)
		path := filepath.Join(opts.OutputDir, filename)

		pixelSeed := uint64(seed) + uint64(i)
		if err := writeImage(path, opts, i, studyUID, seriesUID, pixelSeed); err != nil {
			return nil, fmt.Errorf("generate image %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeImage(path string, opts Options, instance int, studyUID, seriesUID string, pixelSeed uint64) error {
	width, height := opts.Width, opts.Height
	rng := rand.New(rand.NewPCG(pixelSeed, pixelSeed))

	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, width*height, 1)

	cx, cy := float64(width)/2, float64(height)/2
	short := width
	if height < short {
		short = height
	}
	radius := opts.PhantomFraction * float64(short)
	r2 := radius * radius

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			value := opts.NoiseSD * rng.NormFloat64()
			if !opts.NoiseOnly {
				dx, dy := float64(x)-cx, float64(y)-cy
				if dx*dx+dy*dy <= r2 {
					value += opts.SignalValue
				}
			}
			nativeFrame.RawData[y*width+x] = uint16(math.Max(0, math.Min(65535, math.Round(value))))
		}
	}

	sliceLocation := (float64(instance-1) - float64(opts.NumImages-1)/2) * opts.SliceSpacingMM

	imageType := []string{"ORIGINAL", "PRIMARY", "M", "ND"}
	if opts.NormFilter {
		imageType = append(imageType, "NORM")
	}

	sopInstanceUID := deterministicUID(fmt.Sprintf("%s_instance_%d", path, instance))
	spacing := fmt.Sprintf("%.6f", opts.PixelSpacingMM)

	elements := []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.SOPClassUID, []string{mrImageStorageUID}),
		mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
		mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
		mustNewElement(tag.Modality, []string{"MR"}),
		mustNewElement(tag.SeriesDescription, []string{opts.SeriesDescription}),
		mustNewElement(tag.ImageType, imageType),
		mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", instance)}),
		mustNewElement(tag.SliceLocation, []string{fmt.Sprintf("%.6f", sliceLocation)}),
		mustNewElement(tag.PixelSpacing, []string{spacing, spacing}),
		mustNewElement(tag.Rows, []int{height}),
		mustNewElement(tag.Columns, []int{width}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
	}

	if opts.CoilString != "" {
		elements = append(elements, mustNewPrivateElement(tagCoilString, "LO", []string{opts.CoilString}))
	}

	elements = append(elements, mustNewElement(tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}))

	return writeDatasetToFile(path, dicom.Dataset{Elements: elements})
}
