package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type AuditHandler struct {
	auditService *service.AuditService
	log          *zap.Logger
}

func NewAuditHandler(auditService *service.AuditService, log *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, log: log}
}

// filter reads ?user_id=&action=&from=&to= (dates inclusive)
func (h *AuditHandler) filter(c *gin.Context) (repository.AuditFilter, bool) {
	f := repository.AuditFilter{
		Action:     models.AuditAction(c.Query("action")),
		Pagination: repository.Pagination{Page: parseQueryInt(c, "page", 1)},
	}
	if v := parseQueryInt(c, "user_id", 0); v > 0 {
		id := uint(v)
		f.UserID = &id
	}

	from, err := parseDate(c.Query("from"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return f, false
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return f, false
	}
	if from != nil {
		f.From = *from
	}
	if to != nil {
		f.To = to.AddDate(0, 0, 1)
	}
	return f, true
}

func (h *AuditHandler) List(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	logs, total, err := h.auditService.List(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.PagedResponse(c, logs, pageOf(f.Pagination, 50, total))
}

// Export downloads the filtered audit trail as CSV
func (h *AuditHandler) Export(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	logs, err := h.auditService.Export(c.Request.Context(), actorFrom(c), f)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	filename := "audit_logs_" + time.Now().UTC().Format("20060102_150405") + ".csv"
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Timestamp", "User", "Action", "Model", "Object ID", "Details", "IP Address"})
	for _, l := range logs {
		user, object := "", ""
		if l.User != nil {
			user = l.User.Username
		} else if l.UserID != nil {
			user = strconv.FormatUint(uint64(*l.UserID), 10)
		}
		if l.ObjectID != nil {
			object = strconv.FormatUint(uint64(*l.ObjectID), 10)
		}
		_ = w.Write([]string{
			l.Timestamp.Format(time.RFC3339),
			user,
			string(l.Action),
			l.ModelName,
			object,
			l.Details,
			l.IPAddress,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.log.Error("writing audit export", zap.Error(err))
	}
}
