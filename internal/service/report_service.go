package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/roksva123/go-devops-report/internal/config"
	"github.com/roksva123/go-devops-report/internal/devops"
	"github.com/roksva123/go-devops-report/internal/hierarchy"
	"github.com/roksva123/go-devops-report/internal/model"
	"github.com/roksva123/go-devops-report/internal/report"
	"github.com/roksva123/go-devops-report/internal/storage"
)

const dateLayout = "2006-01-02"

// ErrValidation marks requests rejected before any remote call.
var ErrValidation = errors.New("invalid request")

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Source is everything a report needs from the tracker.
type Source interface {
	FetchRoots(ctx context.Context, q model.ItemQuery) ([]*model.WorkItem, error)
	hierarchy.ChildSource
	hierarchy.ParentLookup
}

// RunStore records report runs.
type RunStore interface {
	Create(ctx context.Context, run *model.ReportRun) error
	List(ctx context.Context, limit int) ([]model.ReportRun, error)
}

type (
	SourceFactory   func(cfg devops.Config, logger *slog.Logger) (Source, error)
	UploaderFactory func(target StorageTarget, logger *slog.Logger) (storage.Uploader, error)
)

// StorageTarget is the resolved upload destination of one request.
type StorageTarget struct {
	Backend string
	Azure   storage.AzureConfig
	S3      storage.S3Config
}

type ReportOption func(*ReportService)

func WithSourceFactory(f SourceFactory) ReportOption {
	return func(s *ReportService) { s.newSource = f }
}

func WithUploaderFactory(f UploaderFactory) ReportOption {
	return func(s *ReportService) { s.newUploader = f }
}

func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

func WithTempDir(dir string) ReportOption {
	return func(s *ReportService) { s.tempDir = dir }
}

// ReportService runs the fetch, traverse, classify, render and upload
// pipeline. Every call builds its own client and item pool.
type ReportService struct {
	cfg         *config.Config
	runs        RunStore
	logger      *slog.Logger
	newSource   SourceFactory
	newUploader UploaderFactory
	now         func() time.Time
	tempDir     string
}

func NewReportService(cfg *config.Config, runs RunStore, logger *slog.Logger, opts ...ReportOption) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ReportService{
		cfg:         cfg,
		runs:        runs,
		logger:      logger.With("component", "report"),
		newSource:   newDevOpsSource,
		newUploader: newUploader,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newDevOpsSource(cfg devops.Config, logger *slog.Logger) (Source, error) {
	return devops.NewClient(cfg, logger)
}

func newUploader(target StorageTarget, logger *slog.Logger) (storage.Uploader, error) {
	if target.Backend == "s3" {
		return storage.NewS3Uploader(target.S3, logger)
	}
	return storage.NewAzureUploader(target.Azure, logger)
}

// reportParams is a validated request.
type reportParams struct {
	client       devops.Config
	rootQuery    model.ItemQuery
	dateFilter   *hierarchy.DateFilter
	capexFilters []model.FieldFilter
	customFields []string
	sheetCount   int
	blobName     string
	target       StorageTarget
}

func (s *ReportService) validate(req *model.ReportRequest) (*reportParams, error) {
	p := &reportParams{}

	pat := firstNonEmpty(req.PAT, s.cfg.DevOpsPAT)
	org := firstNonEmpty(req.Organization, s.cfg.DevOpsOrganization)
	project := firstNonEmpty(req.Project, s.cfg.DevOpsProject)
	if pat == "" || org == "" || project == "" {
		return nil, validationErr("missing required parameters, provide AZURE_PAT, ORGANIZATION and PROJECT")
	}
	p.client = devops.Config{
		BaseURL:      s.cfg.DevOpsBaseURL,
		Organization: org,
		Project:      project,
		PAT:          pat,
		APIVersion:   s.cfg.DevOpsAPIVersion,
		BatchSize:    s.cfg.BatchSize,
		Workers:      s.cfg.TraversalWorkers,
		Timeout:      s.cfg.RequestTimeout,
		MaxRetries:   s.cfg.MaxRetries,
		RateLimit:    s.cfg.RateLimit,
		RateBurst:    s.cfg.RateBurst,
	}

	p.sheetCount = report.MaxSheets
	if req.SheetCount != nil {
		p.sheetCount = *req.SheetCount
	}
	if p.sheetCount < 1 || p.sheetCount > report.MaxSheets {
		return nil, validationErr("SHEET_COUNT must be between 1 and %d", report.MaxSheets)
	}

	var rng model.DateRange
	if req.FilterDate != "" {
		from, err := time.Parse(dateLayout, req.FilterDate)
		if err != nil {
			return nil, validationErr("invalid filter_date format, use YYYY-MM-DD")
		}
		rng.From = &from
	}
	if req.FilterEndDate != "" {
		to, err := time.Parse(dateLayout, req.FilterEndDate)
		if err != nil {
			return nil, validationErr("invalid filter_end_date format, use YYYY-MM-DD")
		}
		rng.To = &to
	}
	if rng.From != nil && rng.To != nil && rng.From.After(*rng.To) {
		return nil, validationErr("filter_date must not be after filter_end_date")
	}

	for _, f := range append(append([]model.FieldFilter{}, req.CustomFields...), req.CapexFields...) {
		if _, err := devops.FieldReference(f.Key); err != nil {
			return nil, validationErr("field %q is not a valid field name", f.Key)
		}
	}

	p.rootQuery = model.ItemQuery{
		Type:       model.TypeEpic,
		Filters:    req.CustomFields,
		AssignedTo: strings.TrimSpace(req.AssignedTo),
	}
	if !rng.IsZero() {
		types := nonEmpty(req.DateFilterTypes)
		if appliesTo(types, model.TypeEpic) {
			p.rootQuery.Created = rng
		}
		p.dateFilter = &hierarchy.DateFilter{Range: rng, Types: types}
	}
	p.capexFilters = req.CapexFields
	p.customFields = model.FieldNames(req.CustomFields)

	target, err := s.storageTarget(req)
	if err != nil {
		return nil, err
	}
	p.target = target
	p.blobName = storage.SafeBlobName(req.OutputFileName, s.now())
	return p, nil
}

func (s *ReportService) storageTarget(req *model.ReportRequest) (StorageTarget, error) {
	t := StorageTarget{Backend: s.cfg.StorageBackend}
	switch t.Backend {
	case "s3":
		t.S3 = storage.S3Config{
			Endpoint:  s.cfg.S3Endpoint,
			AccessKey: s.cfg.S3AccessKey,
			SecretKey: s.cfg.S3SecretKey,
			Bucket:    firstNonEmpty(req.ContainerName, s.cfg.S3Bucket),
			UseSSL:    s.cfg.S3UseSSL,
		}
		if t.S3.Endpoint == "" || t.S3.AccessKey == "" || t.S3.SecretKey == "" || t.S3.Bucket == "" {
			return t, validationErr("s3 storage is not fully configured")
		}
	default:
		t.Backend = "azure"
		t.Azure = storage.AzureConfig{
			Account:   firstNonEmpty(req.StorageAccountName, s.cfg.AzureStorageAccount),
			Container: firstNonEmpty(req.ContainerName, s.cfg.AzureStorageContainer),
			SAS:       firstNonEmpty(req.StorageAccountSAS, s.cfg.AzureStorageSAS),
		}
		if t.Azure.Account == "" || t.Azure.Container == "" || t.Azure.SAS == "" {
			return t, validationErr("missing storage parameters, provide storage_account_name, container_name and storage_account_sas")
		}
	}
	return t, nil
}

// Generate builds and uploads one report. A query that matches no Epics is
// a success with no file.
func (s *ReportService) Generate(ctx context.Context, req *model.ReportRequest) (resp *model.ReportResponse, err error) {
	p, err := s.validate(req)
	if err != nil {
		s.logger.Warn("rejected report request", "error", err)
		return nil, err
	}

	start := s.now()
	run := &model.ReportRun{
		RequestedAt:  start.UTC(),
		Organization: p.client.Organization,
		Project:      p.client.Project,
	}
	logger := s.logger.With("organization", run.Organization, "project", run.Project)
	defer func() {
		run.DurationMs = s.now().Sub(start).Milliseconds()
		if err != nil {
			run.Status = model.RunStatusFailed
			run.Error = err.Error()
		}
		if rerr := s.runs.Create(context.WithoutCancel(ctx), run); rerr != nil {
			logger.Error("failed to record report run", "error", rerr)
		}
		if resp != nil {
			resp.RunID = run.ID
		}
	}()

	src, err := s.newSource(p.client, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("fetching epics")
	epics, err := src.FetchRoots(ctx, p.rootQuery)
	if err != nil {
		return nil, fmt.Errorf("fetch epics: %w", err)
	}
	if len(epics) == 0 {
		logger.Warn("no epics found matching the criteria")
		run.Status = model.RunStatusEmpty
		return &model.ReportResponse{Message: "No Epics found matching the criteria."}, nil
	}

	opts := []hierarchy.Option{hierarchy.WithWorkers(s.cfg.TraversalWorkers)}
	if p.dateFilter != nil {
		opts = append(opts, hierarchy.WithDateFilter(*p.dateFilter))
	}
	logger.Info("processing epics", "count", len(epics))
	h, err := hierarchy.NewTraverser(src, logger, opts...).Traverse(ctx, epics, p.customFields)
	if err != nil {
		return nil, fmt.Errorf("traverse hierarchy: %w", err)
	}

	var capex *model.Classification
	if len(p.capexFilters) > 0 {
		capex, err = s.classify(ctx, src, p, h, logger)
		if err != nil {
			return nil, err
		}
		pct := capex.Proportion
		run.CapexPercent = &pct
	}

	fileURL, err := s.renderAndUpload(ctx, p, h, capex, logger)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatusSucceeded
	run.Epics = len(h.Epics)
	run.Items = h.Len()
	run.FileURL = fileURL
	logger.Info("report generation completed", "url", fileURL, "items", run.Items)
	return &model.ReportResponse{
		Message:      "Report generated successfully",
		FileURL:      &fileURL,
		Epics:        run.Epics,
		Items:        run.Items,
		CapexPercent: run.CapexPercent,
	}, nil
}

// classify labels every item against the CAPEX epics. The proportion is
// measured over leaf items, which carry the authored hours.
func (s *ReportService) classify(ctx context.Context, src Source, p *reportParams, h *model.Hierarchy, logger *slog.Logger) (*model.Classification, error) {
	roots, err := src.FetchRoots(ctx, model.ItemQuery{Type: model.TypeEpic, Filters: p.capexFilters})
	if err != nil {
		if devops.IsFatal(err) {
			return nil, fmt.Errorf("fetch capex epics: %w", err)
		}
		logger.Warn("capex epics unavailable, classifying everything as non-CAPEX", "error", err)
		roots = nil
	}

	c := hierarchy.NewClassifier(src, roots, logger)
	res, err := c.Classify(ctx, h.LeafItems)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	for _, bucket := range [][]*model.WorkItem{h.Epics, h.Features, h.Stories} {
		for _, item := range bucket {
			if _, err := c.Label(ctx, item); err != nil {
				return nil, fmt.Errorf("classify: %w", err)
			}
		}
	}
	return res, nil
}

func (s *ReportService) renderAndUpload(ctx context.Context, p *reportParams, h *model.Hierarchy, capex *model.Classification, logger *slog.Logger) (string, error) {
	tmp, err := os.CreateTemp(s.tempDir, "devops-report-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer func() {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.Warn("failed to remove temp report", "path", path, "error", rerr)
		}
	}()

	logger.Info("generating excel report", "sheets", p.sheetCount)
	if err := report.Build(path, h, report.Options{
		SheetCount:   p.sheetCount,
		CustomFields: p.customFields,
		Capex:        capex,
		GeneratedAt:  s.now(),
	}); err != nil {
		return "", fmt.Errorf("build report: %w", err)
	}

	uploader, err := s.newUploader(p.target, logger)
	if err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}
	logger.Info("uploading report", "backend", p.target.Backend, "blob", p.blobName)
	fileURL, err := uploader.Upload(ctx, path, p.blobName)
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	return fileURL, nil
}

// Runs lists recent report runs.
func (s *ReportService) Runs(ctx context.Context, limit int) ([]model.ReportRun, error) {
	return s.runs.List(ctx, limit)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func appliesTo(types []string, itemType string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if strings.EqualFold(t, itemType) {
			return true
		}
	}
	return false
}
