package handler

import (
	"context"

	reportapp "github.com/erp/dues/internal/application/report"
	"github.com/erp/dues/internal/domain/report"
	"github.com/gin-gonic/gin"
)

// DuesReportService is the report application service used by the HTTP layer
type DuesReportService interface {
	BuildReport(ctx context.Context, filter reportapp.ReportFilter) (*report.DuesReport, error)
	ExportReport(ctx context.Context, filter reportapp.ReportFilter) (*reportapp.ExportResult, error)
}

// DuesReportQuery selects the report. Kind and status accept ALL.
type DuesReportQuery struct {
	Kind   string `form:"kind" json:"kind" example:"SALE"`
	Month  string `form:"month" json:"month" binding:"required,month" example:"2026-03"`
	Status string `form:"status" json:"status" example:"ALL"`
}

func (q DuesReportQuery) filter() reportapp.ReportFilter {
	return reportapp.ReportFilter{Kind: q.Kind, Month: q.Month, Status: q.Status}
}

// ReportHandler serves dues reports
type ReportHandler struct {
	BaseHandler
	service DuesReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service DuesReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// GetDuesReport godoc
// @Summary      Dues report
// @Description  List obligations of a month with paid, outstanding and overpaid amounts.
// @Description  Overpaid lines show a negative outstanding amount and are flagged.
// @Tags         reports
// @Produce      json
// @Param        kind   query string false "SALE, PURCHASE, EXPENSE, PAYROLL or ALL"
// @Param        month  query string true  "Month as YYYY-MM"
// @Param        status query string false "UNPAID, PARTIAL, PAID or ALL"
// @Success      200 {object} APIResponse[report.DuesReport]
// @Failure      400 {object} ErrorResponse
// @Router       /reports/dues [get]
func (h *ReportHandler) GetDuesReport(c *gin.Context) {
	var q DuesReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.service.BuildReport(c.Request.Context(), q.filter())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithTotal(c, result, int64(len(result.Lines)))
}

// ExportDuesReport godoc
// @Summary      Export dues report
// @Description  Build the dues report and archive it as JSON for printing
// @Tags         reports
// @Accept       json
// @Produce      json
// @Param        request body DuesReportQuery true "Report selection"
// @Success      201 {object} APIResponse[reportapp.ExportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /reports/dues/export [post]
func (h *ReportHandler) ExportDuesReport(c *gin.Context) {
	var q DuesReportQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.service.ExportReport(c.Request.Context(), q.filter())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}
