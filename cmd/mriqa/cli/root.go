// Package cli wires the mriqa commands: one subcommand per analysis mode,
// a synthetic-series generator and an interactive wizard.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/phantomlab/mriqa/internal/qa"
)

var (
	version = "dev"

	verbose    bool
	configFile string
)

// SetVersion records the build version shown by --version.
func SetVersion(v string) {
	version = v
}

// RootCmd builds the command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "mriqa",
		Short:   "MRI phantom quality-assurance analysis",
		Long:    "mriqa measures phantom acquisitions (weekly checks, NEMA body coil, torso coil array) and writes the metrics workbook plus an ROI overlay image.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetLevel(logrus.InfoLevel)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return cmd.Help()
			}
			cfg, err := qa.LoadRunConfig(configFile)
			if err != nil {
				return err
			}
			rc, err := cfg.ToRunContext()
			if err != nil {
				return err
			}
			return runAnalysis(cmd, rc)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().StringVar(&configFile, "config", "", "run from a YAML configuration file")

	root.AddCommand(
		analysisCmd(qa.ModeWeekly, "weekly <input-dir>",
			"Weekly phantom check: one row per slice, signal circle against corner noise"),
		analysisCmd(qa.ModeNEMABody, "nema-body <input-dir>",
			"NEMA body coil acceptance: image/noise scan pairs per orientation"),
		analysisCmd(qa.ModeTorso, "torso <input-dir>",
			"Torso coil acceptance: combined views and individual elements"),
		synthCmd(),
		wizardCmd(),
	)
	return root
}

// analysisCmd builds one analysis subcommand; they differ only in mode and
// default output names.
func analysisCmd(mode qa.Mode, use, short string) *cobra.Command {
	var (
		workbook string
		overlay  string
		workers  int
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, qa.RunContext{
				InputDir:     args[0],
				Mode:         mode,
				WorkbookPath: workbook,
				OverlayPath:  overlay,
				Workers:      workers,
			})
		},
	}
	cmd.Flags().StringVar(&workbook, "workbook", qa.DefaultWorkbookName(mode), "output workbook path")
	cmd.Flags().StringVar(&overlay, "overlay", mode.String()+"_roi.png", "ROI overlay image path (empty disables)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = CPU count)")
	return cmd
}

func runAnalysis(cmd *cobra.Command, rc qa.RunContext) error {
	result, err := qa.Run(cmd.Context(), rc)
	if err != nil {
		return err
	}
	printRunSummary(cmd, result)
	if result.Rows == 0 {
		return fmt.Errorf("no measurable images in %s", rc.InputDir)
	}
	return nil
}
