package qa

import (
	"fmt"

	"github.com/phantomlab/mriqa/internal/metrics"
	"github.com/phantomlab/mriqa/internal/report"
)

// Row is one workbook line. Key identifies the measurement (filename plus
// region) so duplicate measurements are rejected instead of silently
// overwriting each other.
type Row struct {
	Key   string
	Cells []any
}

// Group is an ordered run of rows sharing a section of the output, e.g.
// one orientation/scan-type combination or one torso sheet.
type Group struct {
	Key    string
	Header []string
	Rows   []Row
}

// ResultSet is the ordered output of one analysis.
type ResultSet struct {
	Mode   Mode
	Groups []*Group
}

// RowCount returns the total number of rows across all groups.
func (rs *ResultSet) RowCount() int {
	n := 0
	for _, g := range rs.Groups {
		n += len(g.Rows)
	}
	return n
}

// Workbook lays the result set out as sheets. Weekly and NEMA body runs
// produce a single sheet; torso runs produce one sheet per group.
func (rs *ResultSet) Workbook() report.Workbook {
	var wb report.Workbook
	switch rs.Mode {
	case ModeTorso:
		for _, g := range rs.Groups {
			sheet := report.Sheet{Name: g.Key, Header: g.Header}
			for _, row := range g.Rows {
				sheet.Rows = append(sheet.Rows, row.Cells)
			}
			wb.Sheets = append(wb.Sheets, sheet)
		}
	default:
		name := "Weekly QA"
		header := weeklyHeader
		if rs.Mode == ModeNEMABody {
			name = "NEMA Body"
			header = nemaHeader
		}
		sheet := report.Sheet{Name: name, Header: header}
		for _, g := range rs.Groups {
			for _, row := range g.Rows {
				sheet.Rows = append(sheet.Rows, row.Cells)
			}
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb
}

// Aggregator collects rows into groups in insertion order and rejects
// duplicate row keys.
type Aggregator struct {
	mode   Mode
	groups map[string]*Group
	order  []string
	seen   map[string]string
}

// NewAggregator returns an empty aggregator for the given mode.
func NewAggregator(mode Mode) *Aggregator {
	return &Aggregator{
		mode:   mode,
		groups: make(map[string]*Group),
		seen:   make(map[string]string),
	}
}

// Group returns the group with the given key, creating it in order if
// needed. The header is set on first creation.
func (a *Aggregator) Group(key string, header []string) *Group {
	if g, ok := a.groups[key]; ok {
		return g
	}
	g := &Group{Key: key, Header: header}
	a.groups[key] = g
	a.order = append(a.order, key)
	return g
}

// Add appends a row to a group. A second row with the same key is a
// pipeline bug or an inconsistent input set; it fails the run.
func (a *Aggregator) Add(groupKey string, header []string, row Row) error {
	if prev, dup := a.seen[row.Key]; dup {
		return fmt.Errorf("duplicate measurement %q (already recorded in group %q)", row.Key, prev)
	}
	a.seen[row.Key] = groupKey
	g := a.Group(groupKey, header)
	g.Rows = append(g.Rows, row)
	return nil
}

// ResultSet returns the groups in creation order.
func (a *Aggregator) ResultSet() *ResultSet {
	rs := &ResultSet{Mode: a.mode}
	for _, key := range a.order {
		rs.Groups = append(rs.Groups, a.groups[key])
	}
	return rs
}

// cell renders a measurement as a workbook cell, using the N/A marker for
// values that could not be computed.
func cell(m metrics.Measurement) any {
	if !m.Defined {
		return report.Undefined
	}
	return m.Value
}
