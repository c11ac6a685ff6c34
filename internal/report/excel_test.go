package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roksva123/go-devops-report/internal/model"
)

func sampleHierarchy() *model.Hierarchy {
	epicID, featureID := 1, 10
	epic := &model.WorkItem{ID: 1, Type: model.TypeEpic, Title: "Platform", State: "Active"}
	epic.SetEffort(8, 5, 3)
	feature := &model.WorkItem{ID: 10, Type: model.TypeFeature, Title: "Billing", ParentID: &epicID, ParentTitle: "Platform"}
	feature.SetEffort(8, 5, 3)
	task := &model.WorkItem{
		ID: 100, Type: model.TypeTask, Title: "Invoice PDF", ParentID: &featureID, ParentTitle: "Billing",
		AssignedTo:   "Sam Lee",
		CustomFields: model.CustomFields{"Priority": "High"},
	}
	task.SetEffort(8, 5, 3)
	task.CapexClassification = model.CapexLabel

	return &model.Hierarchy{
		Epics:     []*model.WorkItem{epic},
		Features:  []*model.WorkItem{feature},
		Stories:   []*model.WorkItem{},
		LeafItems: []*model.WorkItem{task},
	}
}

func openRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return rows
}

func TestBuild_AllSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	err := Build(path, sampleHierarchy(), Options{
		CustomFields: []string{"Custom.Priority"},
		Capex:        &model.Classification{Proportion: 1, CategoryHours: 8, TotalHours: 8},
		GeneratedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{SheetEpics, SheetFeatures, SheetStories, SheetTasks, SheetSummary}, f.GetSheetList())
	require.NoError(t, f.Close())

	epics := openRows(t, path, SheetEpics)
	require.Len(t, epics, 2)
	assert.Equal(t, []string{
		"ID", "Title", "Description", "State", "Estimated Hours", "Completed Work",
		"Remaining Work", "% Complete", "Assigned To", "Priority", "CAPEX Classification",
	}, epics[0])
	assert.Equal(t, "1", epics[1][0])
	assert.Equal(t, "Platform", epics[1][2])
	assert.Equal(t, "0.625", epics[1][7])
	assert.Equal(t, "Unassigned", epics[1][8])

	tasks := openRows(t, path, SheetTasks)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Type", tasks[0][2])
	assert.Equal(t, "Story ID", tasks[0][4])
	assert.Equal(t, "10", tasks[1][4])
	assert.Equal(t, "Billing", tasks[1][5])
	assert.Equal(t, "Sam Lee", tasks[1][10])
	assert.Equal(t, "High", tasks[1][11])
	assert.Equal(t, model.CapexLabel, tasks[1][12])

	stories := openRows(t, path, SheetStories)
	assert.Len(t, stories, 1, "header only")

	summary := openRows(t, path, SheetSummary)
	values := map[string]string{}
	for _, r := range summary[1:] {
		require.Len(t, r, 2)
		values[r[0]] = r[1]
	}
	assert.Equal(t, "1", values["Epics"])
	assert.Equal(t, "8", values["Estimated Hours"])
	assert.Equal(t, "1", values["CAPEX %"])
	assert.Equal(t, "2024-05-01T12:00:00Z", values["Generated At"])
}

func TestBuild_SheetCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Build(path, sampleHierarchy(), Options{SheetCount: 2}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetEpics, SheetFeatures, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetEpics)
	require.NoError(t, err)
	assert.NotContains(t, rows[0], "CAPEX Classification")
}

func TestBuild_InvalidSheetCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	assert.Error(t, Build(path, sampleHierarchy(), Options{SheetCount: 5}))
	assert.Error(t, Build(path, sampleHierarchy(), Options{SheetCount: -1}))
}

func TestBuild_EmptyHierarchy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Build(path, nil, Options{SheetCount: 1}))

	rows := openRows(t, path, SheetEpics)
	assert.Len(t, rows, 1)
}

func TestBuild_OverCompletePercent(t *testing.T) {
	task := &model.WorkItem{ID: 7, Type: model.TypeTask, Title: "Overrun"}
	task.SetEffort(10, 12, 0)
	h := &model.Hierarchy{LeafItems: []*model.WorkItem{task}}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Build(path, h, Options{}))

	tasks := openRows(t, path, SheetTasks)
	require.Len(t, tasks, 2)
	assert.Equal(t, "% Complete", tasks[0][9])
	assert.Equal(t, "1.2", tasks[1][9])
}
