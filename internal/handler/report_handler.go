package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type ReportHandler struct {
	reportService *service.ReportService
	log           *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, log: log}
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	d, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, d)
}

// Daily returns the report for ?date=YYYY-MM-DD (default today).
// ?format=csv downloads it instead.
func (h *ReportHandler) Daily(c *gin.Context) {
	day := h.reportService.Today()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	report, err := h.reportService.Daily(c.Request.Context(), day)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	if c.Query("format") != "csv" {
		utils.SuccessResponse(c, report)
		return
	}

	var buf bytes.Buffer
	if err := h.reportService.ExportDaily(c.Request.Context(), actorFrom(c), report, &buf); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%s.csv"`, report.Date))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// Monthly returns the report for ?year=&month= (default current month)
func (h *ReportHandler) Monthly(c *gin.Context) {
	today := h.reportService.Today()
	year := parseQueryInt(c, "year", today.Year())
	month := parseQueryInt(c, "month", int(today.Month()))

	report, err := h.reportService.Monthly(c.Request.Context(), year, time.Month(month))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, report)
}
