package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roksva123/go-devops-report/internal/model"
)

func TestStaticAdminStore(t *testing.T) {
	s, err := NewStaticAdminStore("admin", "s3cret")
	require.NoError(t, err)

	a, err := s.GetAdminByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("s3cret")))

	_, err = s.GetAdminByUsername(context.Background(), "root")
	assert.ErrorIs(t, err, ErrAdminNotFound)

	_, err = NewStaticAdminStore("admin", "")
	assert.Error(t, err)
}

func TestNopRunStore(t *testing.T) {
	var s NopRunStore
	run := &model.ReportRun{Status: model.RunStatusEmpty}
	require.NoError(t, s.Create(context.Background(), run))
	_, err := uuid.Parse(run.ID)
	assert.NoError(t, err)

	runs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func openTestDB(t *testing.T) *PostgresRepo {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	repo, err := NewPostgresRepo(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.RunMigrations(context.Background()))
	return repo
}

func TestPostgresRepo_Admins(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	username := "test-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_, _ = repo.DB.Exec(`DELETE FROM admins WHERE username = $1`, username)
	})

	require.NoError(t, repo.UpsertAdmin(ctx, username, "hash-1"))
	require.NoError(t, repo.UpsertAdmin(ctx, username, "hash-2"))

	a, err := repo.GetAdminByUsername(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", a.PasswordHash)

	_, err = repo.GetAdminByUsername(ctx, username+"-missing")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestReportRunRepo(t *testing.T) {
	repo := openTestDB(t)
	runs, err := NewReportRunRepo(repo.DB)
	require.NoError(t, err)
	require.NoError(t, runs.AutoMigrate())

	ctx := context.Background()
	older := &model.ReportRun{RequestedAt: time.Now().Add(-time.Hour), Organization: "acme", Project: "p", Status: model.RunStatusEmpty}
	newer := &model.ReportRun{RequestedAt: time.Now(), Organization: "acme", Project: "p", Status: model.RunStatusSucceeded, Epics: 2}
	require.NoError(t, runs.Create(ctx, older))
	require.NoError(t, runs.Create(ctx, newer))
	t.Cleanup(func() {
		_, _ = repo.DB.Exec(`DELETE FROM report_runs WHERE id IN ($1, $2)`, older.ID, newer.ID)
	})

	got, err := runs.List(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, newer.ID, got[0].ID)
}
