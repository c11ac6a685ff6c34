package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/roksva123/go-devops-report/internal/api"
	"github.com/roksva123/go-devops-report/internal/config"
	"github.com/roksva123/go-devops-report/internal/logging"
	"github.com/roksva123/go-devops-report/internal/repository"
	"github.com/roksva123/go-devops-report/internal/service"
)

func main() {
	// LOAD ENV
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed load config:", err)
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		log.Fatal("failed init logging:", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// STORES
	var (
		admins service.AdminStore
		runs   service.RunStore = repository.NopRunStore{}
	)
	if cfg.DatabaseURL != "" {
		repo, err := repository.NewPostgresRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer repo.Close()

		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("migration error", "error", err)
			os.Exit(1)
		}
		runRepo, err := repository.NewReportRunRepo(repo.DB)
		if err != nil {
			logger.Error("report run store unavailable", "error", err)
			os.Exit(1)
		}
		if err := runRepo.AutoMigrate(); err != nil {
			logger.Error("migration error", "error", err)
			os.Exit(1)
		}
		admins, runs = repo, runRepo
	} else if cfg.AdminPassword != "" {
		static, err := repository.NewStaticAdminStore(cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Error("failed to set up admin", "error", err)
			os.Exit(1)
		}
		admins = static
	}

	// SERVICES
	reports := service.NewReportService(cfg, runs, logger)
	deps := api.Deps{Reports: reports, JWTSecret: cfg.JWTSecret, Logger: logger}
	if cfg.JWTSecret != "" && admins != nil {
		deps.Auth = service.NewAuthService(admins, cfg.JWTSecret)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, report routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server running", "port", cfg.Port, "env", cfg.AppEnv, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
