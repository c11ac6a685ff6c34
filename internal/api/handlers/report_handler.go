package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roksva123/go-devops-report/internal/devops"
	"github.com/roksva123/go-devops-report/internal/model"
	"github.com/roksva123/go-devops-report/internal/service"
)

const maxRunLimit = 200

type ReportGenerator interface {
	Generate(ctx context.Context, req *model.ReportRequest) (*model.ReportResponse, error)
	Runs(ctx context.Context, limit int) ([]model.ReportRun, error)
}

type ReportHandler struct {
	reports ReportGenerator
	logger  *slog.Logger
}

func NewReportHandler(reports ReportGenerator, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{reports: reports, logger: logger}
}

func (h *ReportHandler) GenerateReport(c *gin.Context) {
	var req model.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	h.logger.Info("received report generation request",
		"organization", req.Organization,
		"project", req.Project,
		"custom_fields", len(req.CustomFields))

	resp, err := h.reports.Generate(c.Request.Context(), &req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("report generation failed", "status", status, "error", err)
		}
		c.JSON(status, gin.H{"error": errorMessage(status, err)})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportHandler) ListRuns(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxRunLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	runs, err := h.reports.Runs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing report runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.ResponseApi{ApiMessage: "ok", Data: runs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, devops.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, devops.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, devops.ErrUpstreamFormat), errors.Is(err, devops.ErrRejected):
		return http.StatusBadGateway
	case errors.Is(err, devops.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorMessage(status int, err error) string {
	switch status {
	case http.StatusUnauthorized:
		return "Azure DevOps rejected the personal access token"
	case http.StatusInternalServerError:
		return "Failed to generate report: " + err.Error()
	}
	return err.Error()
}
