package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/phantomlab/mriqa/internal/qa"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printRunSummary(cmd *cobra.Command, result *qa.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("✓ %d measurements", result.Rows)))
	fmt.Fprintln(out, dimStyle.Render("  workbook: "+result.WorkbookPath))
	if result.OverlayPath != "" {
		fmt.Fprintln(out, dimStyle.Render("  overlay:  "+result.OverlayPath))
	}
	for _, f := range result.Failures {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("  ! %s [%s]: %s", f.File, f.Stage, f.Reason)))
	}
}
