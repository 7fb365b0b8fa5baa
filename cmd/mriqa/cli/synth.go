package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phantomlab/mriqa/internal/phantomgen"
)

// synthCmd generates synthetic phantom series, mainly to exercise the
// analyses without scanner data.
func synthCmd() *cobra.Command {
	var opts phantomgen.Options
	cmd := &cobra.Command{
		Use:   "synth <output-dir>",
		Short: "Generate a synthetic phantom DICOM series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.OutputDir = args[0]
			paths, err := phantomgen.Generate(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				okStyle.Render(fmt.Sprintf("✓ %d images written to %s", len(paths), opts.OutputDir)))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.NumImages, "num", 5, "number of slices")
	f.IntVar(&opts.Width, "width", 128, "image width in pixels")
	f.IntVar(&opts.Height, "height", 128, "image height in pixels")
	f.Float64Var(&opts.PixelSpacingMM, "spacing", 1.5, "pixel spacing in mm")
	f.Float64Var(&opts.SliceSpacingMM, "slice-spacing", 5.0, "distance between slices in mm")
	f.Float64Var(&opts.SignalValue, "signal", 1000, "phantom disc intensity")
	f.Float64Var(&opts.NoiseSD, "noise-sd", 0, "Gaussian noise sigma")
	f.BoolVar(&opts.NoiseOnly, "noise-only", false, "generate noise frames without the phantom")
	f.Float64Var(&opts.PhantomFraction, "fraction", 0.4, "disc radius as a fraction of the short dimension")
	f.StringVar(&opts.SeriesDescription, "series", "qa phantom", "series description")
	f.StringVar(&opts.CoilString, "coil", "", "coil element string, e.g. VAS1")
	f.BoolVar(&opts.NormFilter, "norm", false, "mark the series as normalization-filtered")
	f.StringVar(&opts.FilePrefix, "prefix", "IMG", "output filename prefix")
	f.Int64Var(&opts.Seed, "seed", 0, "noise seed (0 derives one from the output path)")
	return cmd
}
