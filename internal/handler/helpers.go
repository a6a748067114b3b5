package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hms-backend/internal/middleware"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

const dateLayout = "2006-01-02"

var kenyanPhone = regexp.MustCompile(`^\+?254\d{9}$`)

// RegisterValidators adds the custom binding tags used by request structs
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		return kenyanPhone.MatchString(fl.Field().String())
	})
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation failed",
			"fields":  validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrPatientNotFound),
		errors.Is(err, service.ErrConsultationNotFound),
		errors.Is(err, service.ErrLabOrderNotFound),
		errors.Is(err, service.ErrPrescriptionNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrMedicationNotFound),
		errors.Is(err, service.ErrUserNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrMRNConflict),
		errors.Is(err, service.ErrDuplicateNationalID),
		errors.Is(err, service.ErrDuplicateUser),
		errors.Is(err, service.ErrPrescriptionExists),
		errors.Is(err, service.ErrPrescriptionClosed),
		errors.Is(err, service.ErrAlreadyDispensed),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConcurrentUpdate):
		utils.ErrorResponse(c, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrQueryTooShort):
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		utils.ErrorResponse(c, http.StatusUnauthorized, err.Error())

	case errors.Is(err, service.ErrAccountLocked):
		utils.ErrorResponse(c, http.StatusLocked, err.Error())

	default:
		log.Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// actorFrom builds the service actor from the authenticated request
func actorFrom(c *gin.Context) service.Actor {
	userID, role, _ := middleware.CurrentUser(c)
	return service.Actor{
		UserID:    userID,
		Role:      role,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid "+param)
		return 0, false
	}
	return uint(id), true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

func pagination(c *gin.Context) repository.Pagination {
	return repository.Pagination{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 0),
	}
}

func pageOf(p repository.Pagination, def int, total int64) utils.Page {
	p = p.Normalize(def)
	return utils.Page{Page: p.Page, PageSize: p.PageSize, Total: total}
}

// parseDate parses an optional YYYY-MM-DD value
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
