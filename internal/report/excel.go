// Package report renders a hierarchy into an xlsx workbook.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/roksva123/go-devops-report/internal/model"
)

const (
	SheetEpics    = "Epics"
	SheetFeatures = "Features"
	SheetStories  = "User Stories"
	SheetTasks    = "Tasks"
	SheetSummary  = "Summary"

	MaxSheets = 4

	customFieldWidth = 20
	// builtin number format 10 is "0.00%"
	percentNumFmt = 10
)

// Options controls what Build writes.
type Options struct {
	// SheetCount limits the item sheets, in Epics/Features/User Stories/Tasks
	// order. 0 means all four.
	SheetCount   int
	CustomFields []string
	// Capex adds a classification column and summary rows when set.
	Capex       *model.Classification
	GeneratedAt time.Time
}

type column struct {
	header  string
	width   float64
	percent bool
	value   func(*model.WorkItem) any
}

func parentID(w *model.WorkItem) any {
	if w.ParentID == nil {
		return ""
	}
	return *w.ParentID
}

func assignee(w *model.WorkItem) any {
	if w.AssignedTo == "" {
		return "Unassigned"
	}
	return w.AssignedTo
}

var (
	colID       = column{header: "ID", width: 10, value: func(w *model.WorkItem) any { return w.ID }}
	colTitle    = column{header: "Title", width: 40, value: func(w *model.WorkItem) any { return w.Title }}
	colState    = column{header: "State", width: 15, value: func(w *model.WorkItem) any { return w.State }}
	colEstimate = column{header: "Estimated Hours", width: 15, value: func(w *model.WorkItem) any { return w.EstimatedHours }}
	colDone     = column{header: "Completed Work", width: 15, value: func(w *model.WorkItem) any { return w.CompletedWork }}
	colLeft     = column{header: "Remaining Work", width: 15, value: func(w *model.WorkItem) any { return w.RemainingWork }}
	colPercent  = column{header: "% Complete", width: 15, percent: true, value: func(w *model.WorkItem) any { return w.PercentComplete }}
	colAssignee = column{header: "Assigned To", width: 20, value: assignee}
)

func parentColumns(kind string) []column {
	return []column{
		{header: kind + " ID", width: 15, value: parentID},
		{header: kind + " Title", width: 40, value: func(w *model.WorkItem) any { return w.ParentTitle }},
	}
}

func effortColumns() []column {
	return []column{colEstimate, colDone, colLeft, colPercent, colAssignee}
}

type sheetLayout struct {
	name    string
	columns []column
	items   func(*model.Hierarchy) []*model.WorkItem
}

func sheetLayouts() []sheetLayout {
	descr := column{header: "Description", width: 40, value: colTitle.value}
	typ := column{header: "Type", width: 15, value: func(w *model.WorkItem) any { return w.Type }}

	return []sheetLayout{
		{
			name:    SheetEpics,
			columns: append([]column{colID, colTitle, descr, colState}, effortColumns()...),
			items:   func(h *model.Hierarchy) []*model.WorkItem { return h.Epics },
		},
		{
			name:    SheetFeatures,
			columns: append(append([]column{colID, colTitle, colState}, parentColumns("Epic")...), effortColumns()...),
			items:   func(h *model.Hierarchy) []*model.WorkItem { return h.Features },
		},
		{
			name:    SheetStories,
			columns: append(append([]column{colID, colTitle, colState}, parentColumns("Feature")...), effortColumns()...),
			items:   func(h *model.Hierarchy) []*model.WorkItem { return h.Stories },
		},
		{
			name:    SheetTasks,
			columns: append(append([]column{colID, colTitle, typ, colState}, parentColumns("Story")...), effortColumns()...),
			items:   func(h *model.Hierarchy) []*model.WorkItem { return h.LeafItems },
		},
	}
}

type styles struct {
	header  int
	cell    int
	percent int
}

func newStyles(f *excelize.File) (styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"D0D0D0"}, Pattern: 1},
		Border: border,
	}); err != nil {
		return s, err
	}
	if s.cell, err = f.NewStyle(&excelize.Style{Border: border}); err != nil {
		return s, err
	}
	if s.percent, err = f.NewStyle(&excelize.Style{Border: border, NumFmt: percentNumFmt}); err != nil {
		return s, err
	}
	return s, nil
}

// Build writes h to path as an xlsx workbook.
func Build(path string, h *model.Hierarchy, opts Options) error {
	count := opts.SheetCount
	if count == 0 {
		count = MaxSheets
	}
	if count < 1 || count > MaxSheets {
		return fmt.Errorf("sheet count must be between 1 and %d, got %d", MaxSheets, count)
	}
	if h == nil {
		h = &model.Hierarchy{}
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("create styles: %w", err)
	}

	extra := customColumns(opts.CustomFields)
	if opts.Capex != nil {
		extra = append(extra, column{
			header: "CAPEX Classification",
			width:  customFieldWidth,
			value:  func(w *model.WorkItem) any { return w.CapexClassification },
		})
	}

	for i, layout := range sheetLayouts()[:count] {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", layout.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(layout.name); err != nil {
			return err
		}
		cols := append(append([]column{}, layout.columns...), extra...)
		if err := writeSheet(f, layout.name, cols, layout.items(h), st); err != nil {
			return fmt.Errorf("write %s sheet: %w", layout.name, err)
		}
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(f, h, opts, st); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func customColumns(names []string) []column {
	out := make([]column, 0, len(names))
	for _, name := range names {
		key := model.NormalizeFieldName(name)
		if key == "" {
			continue
		}
		out = append(out, column{
			header: key,
			width:  customFieldWidth,
			value:  func(w *model.WorkItem) any { return w.CustomFields.String(key) },
		})
	}
	return out
}

func writeSheet(f *excelize.File, sheet string, cols []column, items []*model.WorkItem, st styles) error {
	for i, c := range cols {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return err
		}
		cell := name + "1"
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, st.header); err != nil {
			return err
		}
	}

	for r, item := range items {
		row := r + 2
		for i, c := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, c.value(item)); err != nil {
				return err
			}
			style := st.cell
			if c.percent {
				style = st.percent
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, h *model.Hierarchy, opts Options, st styles) error {
	var est, done, left float64
	for _, e := range h.Epics {
		est += e.EstimatedHours
		done += e.CompletedWork
		left += e.RemainingWork
	}

	type row struct {
		label   string
		value   any
		percent bool
	}
	rows := []row{
		{label: "Epics", value: len(h.Epics)},
		{label: "Features", value: len(h.Features)},
		{label: "User Stories", value: len(h.Stories)},
		{label: "Tasks and Bugs", value: len(h.LeafItems)},
		{label: "Estimated Hours", value: est},
		{label: "Completed Work", value: done},
		{label: "Remaining Work", value: left},
		{label: "% Complete", value: model.PercentComplete(done, est), percent: true},
	}
	if opts.Capex != nil {
		rows = append(rows,
			row{label: "CAPEX Hours", value: opts.Capex.CategoryHours},
			row{label: "CAPEX %", value: opts.Capex.Proportion, percent: true},
		)
	}
	if !opts.GeneratedAt.IsZero() {
		rows = append(rows, row{label: "Generated At", value: opts.GeneratedAt.UTC().Format(time.RFC3339)})
	}

	if err := f.SetColWidth(SheetSummary, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "B", "B", 20); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetSummary, "A1", &[]any{"Metric", "Value"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", st.header); err != nil {
		return err
	}
	for i, r := range rows {
		n := i + 2
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", n), &[]any{r.label, r.value}); err != nil {
			return err
		}
		style := st.cell
		if r.percent {
			style = st.percent
		}
		if err := f.SetCellStyle(SheetSummary, fmt.Sprintf("A%d", n), fmt.Sprintf("B%d", n), style); err != nil {
			return err
		}
	}
	return nil
}
