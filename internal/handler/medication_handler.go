package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type MedicationHandler struct {
	medicationService *service.MedicationService
	log               *zap.Logger
}

func NewMedicationHandler(medicationService *service.MedicationService, log *zap.Logger) *MedicationHandler {
	return &MedicationHandler{medicationService: medicationService, log: log}
}

type MedicationRequest struct {
	Name              string `json:"name" binding:"required,max=200"`
	GenericName       string `json:"generic_name" binding:"max=200"`
	BrandName         string `json:"brand_name" binding:"max=200"`
	Category          string `json:"category" binding:"max=100"`
	Strength          string `json:"strength" binding:"required,max=50"`
	Unit              string `json:"unit" binding:"max=20"`
	Route             string `json:"route" binding:"max=20"`
	SideEffects       string `json:"side_effects"`
	Contraindications string `json:"contraindications"`
	IsActive          *bool  `json:"is_active"`
}

func (r MedicationRequest) toModel() *models.Medication {
	m := &models.Medication{
		Name:              r.Name,
		GenericName:       r.GenericName,
		BrandName:         r.BrandName,
		Category:          r.Category,
		Strength:          r.Strength,
		Unit:              r.Unit,
		Route:             r.Route,
		SideEffects:       r.SideEffects,
		Contraindications: r.Contraindications,
		IsActive:          true,
	}
	if r.IsActive != nil {
		m.IsActive = *r.IsActive
	}
	return m
}

// List returns the catalog; ?all=true includes inactive entries
func (h *MedicationHandler) List(c *gin.Context) {
	p := pagination(c)
	meds, total, err := h.medicationService.List(c.Request.Context(), c.Query("all") != "true", p)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.PagedResponse(c, meds, pageOf(p, 50, total))
}

func (h *MedicationHandler) Search(c *gin.Context) {
	meds, err := h.medicationService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, meds)
}

func (h *MedicationHandler) Create(c *gin.Context) {
	var req MedicationRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.medicationService.Create(c.Request.Context(), actorFrom(c), req.toModel())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, m)
}

func (h *MedicationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MedicationRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.medicationService.Update(c.Request.Context(), actorFrom(c), id, req.toModel())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, m)
}
