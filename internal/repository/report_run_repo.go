package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roksva123/go-devops-report/internal/model"
)

const defaultRunLimit = 50

// ReportRunRepo keeps a history of report runs through gorm.
type ReportRunRepo struct {
	db *gorm.DB
}

// NewReportRunRepo shares an open *sql.DB with gorm.
func NewReportRunRepo(sqlDB *sql.DB) (*ReportRunRepo, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &ReportRunRepo{db: db}, nil
}

func (r *ReportRunRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&model.ReportRun{})
}

// Create stores run, assigning an id when it has none.
func (r *ReportRunRepo) Create(ctx context.Context, run *model.ReportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// List returns the most recent runs first.
func (r *ReportRunRepo) List(ctx context.Context, limit int) ([]model.ReportRun, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	var runs []model.ReportRun
	err := r.db.WithContext(ctx).
		Order("requested_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// NopRunStore drops runs. Used when no database is configured.
type NopRunStore struct{}

func (NopRunStore) Create(_ context.Context, run *model.ReportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return nil
}

func (NopRunStore) List(context.Context, int) ([]model.ReportRun, error) {
	return []model.ReportRun{}, nil
}
