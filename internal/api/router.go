// Package api wires the HTTP routes.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/roksva123/go-devops-report/internal/api/handlers"
	"github.com/roksva123/go-devops-report/internal/api/middleware"
)

type Deps struct {
	Reports handlers.ReportGenerator
	Auth    handlers.Authenticator
	// JWTSecret enables bearer auth on report routes when set.
	JWTSecret string
	Logger    *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	reportHandler := handlers.NewReportHandler(d.Reports, d.Logger)

	r.GET("/health", handlers.Health)

	guard := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if d.JWTSecret == "" {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{middleware.Auth(d.JWTSecret), h}
	}

	ado := r.Group("/ado-report")
	{
		ado.GET("/health", handlers.Health)
		ado.POST("/generate-report", guard(reportHandler.GenerateReport)...)
	}

	// legacy path kept for existing callers
	r.POST("/api/generate-report", guard(reportHandler.GenerateReport)...)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/reports/runs", guard(reportHandler.ListRuns)...)
		if d.Auth != nil {
			v1.POST("/auth/login", handlers.NewAuthHandler(d.Auth).Login)
		}
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP())
	}
}
