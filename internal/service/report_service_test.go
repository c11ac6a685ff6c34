package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roksva123/go-devops-report/internal/config"
	"github.com/roksva123/go-devops-report/internal/devops"
	"github.com/roksva123/go-devops-report/internal/logging"
	"github.com/roksva123/go-devops-report/internal/model"
	"github.com/roksva123/go-devops-report/internal/repository"
	"github.com/roksva123/go-devops-report/internal/storage"
)

type fakeSource struct {
	items    map[int]*model.WorkItem
	children map[int][]int
	parents  map[int]int
	epics    []int
	capex    []int
	rootsErr error

	queries []model.ItemQuery
}

func (f *fakeSource) FetchRoots(_ context.Context, q model.ItemQuery) ([]*model.WorkItem, error) {
	f.queries = append(f.queries, q)
	if f.rootsErr != nil {
		return nil, f.rootsErr
	}
	ids := f.epics
	if len(f.queries) > 1 {
		ids = f.capex
	}
	return f.details(ids), nil
}

func (f *fakeSource) details(ids []int) []*model.WorkItem {
	out := []*model.WorkItem{}
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeSource) FetchDirectChildren(_ context.Context, id int) ([]int, error) {
	return f.children[id], nil
}

func (f *fakeSource) FetchDetails(_ context.Context, ids []int) ([]*model.WorkItem, error) {
	return f.details(ids), nil
}

func (f *fakeSource) FetchParent(_ context.Context, id int) (int, bool, error) {
	p, ok := f.parents[id]
	return p, ok, nil
}

type fakeUploader struct {
	mu       sync.Mutex
	blob     string
	size     int64
	uploaded string
	err      error
}

func (u *fakeUploader) Upload(_ context.Context, localPath, blobName string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fi, err := os.Stat(localPath)
	if err != nil {
		return "", err
	}
	u.size = fi.Size()
	u.blob = blobName
	u.uploaded = localPath
	if u.err != nil {
		return "", u.err
	}
	return "https://acct.blob.core.windows.net/reports/" + blobName, nil
}

type memRuns struct {
	runs []model.ReportRun
}

func (m *memRuns) Create(ctx context.Context, run *model.ReportRun) error {
	_ = repository.NopRunStore{}.Create(ctx, run)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memRuns) List(context.Context, int) ([]model.ReportRun, error) {
	return m.runs, nil
}

func task(id int, est, done float64) *model.WorkItem {
	return &model.WorkItem{ID: id, Type: model.TypeTask, Title: "task", EstimatedHours: est, CompletedWork: done}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		items: map[int]*model.WorkItem{
			1:   {ID: 1, Type: model.TypeEpic, Title: "Platform"},
			2:   {ID: 2, Type: model.TypeEpic, Title: "Capex epic"},
			10:  {ID: 10, Type: model.TypeFeature, Title: "Billing"},
			100: task(100, 6, 3),
			101: task(101, 2, 2),
		},
		children: map[int][]int{1: {10, 101}, 10: {100}},
		parents:  map[int]int{100: 10, 10: 2, 101: 1},
		epics:    []int{1},
		capex:    []int{2},
	}
}

type harness struct {
	svc      *ReportService
	src      *fakeSource
	uploader *fakeUploader
	runs     *memRuns
	tempDir  string
	target   StorageTarget
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		src:      newFakeSource(),
		uploader: &fakeUploader{},
		runs:     &memRuns{},
		tempDir:  t.TempDir(),
	}
	cfg := &config.Config{
		StorageBackend:   "azure",
		BatchSize:        200,
		TraversalWorkers: 2,
	}
	clock := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)
	h.svc = NewReportService(cfg, h.runs, logging.Discard(),
		WithSourceFactory(func(c devops.Config, _ *slog.Logger) (Source, error) {
			assert.Equal(t, "acme", c.Organization)
			return h.src, nil
		}),
		WithUploaderFactory(func(target StorageTarget, _ *slog.Logger) (storage.Uploader, error) {
			h.target = target
			return h.uploader, nil
		}),
		WithClock(func() time.Time { return clock }),
		WithTempDir(h.tempDir),
	)
	return h
}

func validRequest() *model.ReportRequest {
	return &model.ReportRequest{
		PAT:                "pat",
		Organization:       "acme",
		Project:            "Payments",
		StorageAccountName: "acct",
		ContainerName:      "reports",
		StorageAccountSAS:  "sv=1",
	}
}

func TestGenerate_Success(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Generate(context.Background(), validRequest())
	require.NoError(t, err)

	require.NotNil(t, resp.FileURL)
	assert.Equal(t, "https://acct.blob.core.windows.net/reports/azure_devops_report_20240501_130405.xlsx", *resp.FileURL)
	assert.Equal(t, 1, resp.Epics)
	assert.Equal(t, 4, resp.Items)
	assert.Nil(t, resp.CapexPercent)
	assert.NotEmpty(t, resp.RunID)

	assert.Positive(t, h.uploader.size)
	assert.Equal(t, "acct", h.target.Azure.Account)
	_, statErr := os.Stat(h.uploader.uploaded)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "temp file removed")

	require.Len(t, h.runs.runs, 1)
	assert.Equal(t, model.RunStatusSucceeded, h.runs.runs[0].Status)
	assert.Equal(t, resp.RunID, h.runs.runs[0].ID)

	require.Len(t, h.src.queries, 1)
	assert.Equal(t, model.TypeEpic, h.src.queries[0].Type)
}

func TestGenerate_NoEpics(t *testing.T) {
	h := newHarness(t)
	h.src.epics = nil

	resp, err := h.svc.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.FileURL)
	assert.Equal(t, "No Epics found matching the criteria.", resp.Message)
	assert.Empty(t, h.uploader.blob)
	require.Len(t, h.runs.runs, 1)
	assert.Equal(t, model.RunStatusEmpty, h.runs.runs[0].Status)
}

func TestGenerate_Capex(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.CapexFields = []model.FieldFilter{{Key: "Capex", Value: "Yes"}}
	req.OutputFileName = "q2 capex"

	resp, err := h.svc.Generate(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, resp.CapexPercent)
	// Task 100 (6h) sits under Feature 10, whose parent is capex Epic 2.
	assert.InDelta(t, 0.75, *resp.CapexPercent, 1e-9)
	assert.Equal(t, "q2capex.xlsx", h.uploader.blob)
	require.Len(t, h.src.queries, 2)
	assert.Equal(t, []model.FieldFilter{{Key: "Capex", Value: "Yes"}}, h.src.queries[1].Filters)
}

func TestGenerate_UploadFailureRemovesTempFile(t *testing.T) {
	h := newHarness(t)
	h.uploader.err = errors.New("boom")

	_, err := h.svc.Generate(context.Background(), validRequest())
	require.Error(t, err)

	entries, rerr := os.ReadDir(h.tempDir)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
	require.Len(t, h.runs.runs, 1)
	assert.Equal(t, model.RunStatusFailed, h.runs.runs[0].Status)
	assert.Contains(t, h.runs.runs[0].Error, "boom")
}

func TestGenerate_UnauthorizedPropagates(t *testing.T) {
	h := newHarness(t)
	h.src.rootsErr = &devops.APIError{Kind: devops.ErrUnauthorized, Op: "run query", StatusCode: 401}

	_, err := h.svc.Generate(context.Background(), validRequest())
	assert.ErrorIs(t, err, devops.ErrUnauthorized)
}

func TestGenerate_DateFilterOnRoots(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.FilterDate = "2024-01-01"
	req.DateFilterTypes = []string{"Task"}

	_, err := h.svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, h.src.queries[0].Created.IsZero(), "epics are not date-filtered unless listed")

	h = newHarness(t)
	req.DateFilterTypes = nil
	_, err = h.svc.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, h.src.queries[0].Created.From)
	assert.Equal(t, "2024-01-01", h.src.queries[0].Created.From.Format("2006-01-02"))
}

func TestGenerate_Validation(t *testing.T) {
	five := 5
	tests := []struct {
		name   string
		mutate func(*model.ReportRequest)
	}{
		{"missing pat", func(r *model.ReportRequest) { r.PAT = "" }},
		{"missing project", func(r *model.ReportRequest) { r.Project = " " }},
		{"missing storage", func(r *model.ReportRequest) { r.StorageAccountSAS = "" }},
		{"sheet count", func(r *model.ReportRequest) { r.SheetCount = &five }},
		{"bad date", func(r *model.ReportRequest) { r.FilterDate = "01/02/2024" }},
		{"inverted range", func(r *model.ReportRequest) { r.FilterDate, r.FilterEndDate = "2024-02-01", "2024-01-01" }},
		{"bad field", func(r *model.ReportRequest) { r.CustomFields = []model.FieldFilter{{Key: "a b", Value: "x"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := validRequest()
			tt.mutate(req)

			_, err := h.svc.Generate(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, h.src.queries)
			assert.Empty(t, h.runs.runs)
		})
	}
}

func TestGenerate_ConfigDefaults(t *testing.T) {
	h := newHarness(t)
	h.svc.cfg.DevOpsPAT = "env-pat"
	h.svc.cfg.DevOpsOrganization = "acme"
	h.svc.cfg.DevOpsProject = "Payments"
	h.svc.cfg.AzureStorageAccount = "acct"
	h.svc.cfg.AzureStorageContainer = "reports"
	h.svc.cfg.AzureStorageSAS = "sv=1"

	_, err := h.svc.Generate(context.Background(), &model.ReportRequest{})
	require.NoError(t, err)
}

func TestStorageTarget_S3(t *testing.T) {
	h := newHarness(t)
	h.svc.cfg.StorageBackend = "s3"

	_, err := h.svc.storageTarget(validRequest())
	assert.ErrorIs(t, err, ErrValidation)

	h.svc.cfg.S3Endpoint = "localhost:9000"
	h.svc.cfg.S3AccessKey = "a"
	h.svc.cfg.S3SecretKey = "s"
	h.svc.cfg.S3Bucket = "devops-reports"
	target, err := h.svc.storageTarget(&model.ReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, "s3", target.Backend)
	assert.Equal(t, "devops-reports", target.S3.Bucket)
}

func TestRuns(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Generate(context.Background(), validRequest())
	require.NoError(t, err)

	runs, err := h.svc.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
