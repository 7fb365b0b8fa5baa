// Package qa runs the phantom quality-assurance analyses: weekly phantom
// checks, NEMA body coil measurements and torso coil element measurements.
// Each mode loads a directory of DICOM slices, places regions of interest,
// computes signal statistics and writes a workbook plus an ROI overlay.
package qa

import "fmt"

// Mode selects which analysis runs.
type Mode int

const (
	ModeWeekly Mode = iota
	ModeNEMABody
	ModeTorso
)

// ParseMode maps a CLI or config string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "weekly":
		return ModeWeekly, nil
	case "nema", "nema-body":
		return ModeNEMABody, nil
	case "torso":
		return ModeTorso, nil
	default:
		return 0, fmt.Errorf("unknown analysis mode %q (want weekly, nema-body or torso)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeWeekly:
		return "weekly"
	case ModeNEMABody:
		return "nema-body"
	case ModeTorso:
		return "torso"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}
