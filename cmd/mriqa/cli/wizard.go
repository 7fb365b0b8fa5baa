package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/phantomlab/mriqa/internal/qa"
)

// wizardCmd walks through a run interactively and optionally saves the
// answers as a config file for --config.
func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Configure and start an analysis interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := qa.RunConfig{Mode: "weekly"}
			savePath := ""
			workers := ""

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Analysis").
						Options(
							huh.NewOption("Weekly phantom check", "weekly"),
							huh.NewOption("NEMA body coil", "nema-body"),
							huh.NewOption("Torso coil array", "torso"),
						).
						Value(&cfg.Mode),
					huh.NewInput().
						Title("Input directory").
						Description("Directory with the DICOM acquisition").
						Validate(func(s string) error {
							if s == "" {
								return fmt.Errorf("input directory is required")
							}
							if _, err := os.Stat(s); err != nil {
								return fmt.Errorf("cannot access %s", s)
							}
							return nil
						}).
						Value(&cfg.InputDir),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Workbook path").
						Description("Leave empty for the mode's default name").
						Value(&cfg.Workbook),
					huh.NewInput().
						Title("Overlay image path").
						Description("Leave empty to skip the ROI overlay").
						Value(&cfg.Overlay),
					huh.NewInput().
						Title("Workers").
						Description("Parallel workers, empty for one per CPU").
						Validate(func(s string) error {
							if s == "" {
								return nil
							}
							if _, err := strconv.Atoi(s); err != nil {
								return fmt.Errorf("not a number")
							}
							return nil
						}).
						Value(&workers),
					huh.NewInput().
						Title("Save configuration as").
						Description("Optional YAML file for later --config runs").
						Value(&savePath),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
			if workers != "" {
				cfg.Workers, _ = strconv.Atoi(workers)
			}

			if savePath != "" {
				if err := cfg.Save(savePath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("  config:   "+savePath))
			}

			rc, err := cfg.ToRunContext()
			if err != nil {
				return err
			}
			return runAnalysis(cmd, rc)
		},
	}
}
