package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type PrescriptionHandler struct {
	prescriptionService *service.PrescriptionService
	log                 *zap.Logger
}

func NewPrescriptionHandler(prescriptionService *service.PrescriptionService, log *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{prescriptionService: prescriptionService, log: log}
}

type PrescriptionItemRequest struct {
	MedicationID uint   `json:"medication_id" binding:"required"`
	Dosage       string `json:"dosage" binding:"required,max=100"`
	Frequency    string `json:"frequency" binding:"required,oneof=od bd tds qds prn stat nocte"`
	Duration     int    `json:"duration" binding:"required,min=1"`
	DurationUnit string `json:"duration_unit" binding:"omitempty,oneof=days weeks months"`
	Route        string `json:"route" binding:"max=20"`
	Instructions string `json:"instructions"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	Refills      int    `json:"refills" binding:"min=0"`
}

func (r PrescriptionItemRequest) toModel() models.PrescriptionItem {
	return models.PrescriptionItem{
		MedicationID: r.MedicationID,
		Dosage:       r.Dosage,
		Frequency:    r.Frequency,
		Duration:     r.Duration,
		DurationUnit: r.DurationUnit,
		Route:        r.Route,
		Instructions: r.Instructions,
		Quantity:     r.Quantity,
		Refills:      r.Refills,
	}
}

type PrescriptionRequest struct {
	Notes string                    `json:"notes"`
	Items []PrescriptionItemRequest `json:"items" binding:"omitempty,dive"`
}

// Create issues the prescription for the consultation in the path
func (h *PrescriptionHandler) Create(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req PrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	p := &models.Prescription{Notes: req.Notes}
	for _, item := range req.Items {
		p.Items = append(p.Items, item.toModel())
	}

	created, err := h.prescriptionService.Create(c.Request.Context(), actorFrom(c), id, p)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, created)
}

func (h *PrescriptionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.prescriptionService.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, p)
}

// List filters prescriptions: ?patient_id=&status=&page=
func (h *PrescriptionHandler) List(c *gin.Context) {
	f := repository.PrescriptionFilter{
		Status:     models.PrescriptionStatus(c.Query("status")),
		Pagination: pagination(c),
	}
	if v := parseQueryInt(c, "patient_id", 0); v > 0 {
		id := uint(v)
		f.PatientID = &id
	}

	list, total, err := h.prescriptionService.List(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.PagedResponse(c, list, pageOf(f.Pagination, 20, total))
}

func (h *PrescriptionHandler) AddItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req PrescriptionItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item := req.toModel()

	created, err := h.prescriptionService.AddItem(c.Request.Context(), actorFrom(c), id, &item)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, created)
}

func (h *PrescriptionHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.prescriptionService.ChangeStatus(c.Request.Context(), actorFrom(c), id, models.PrescriptionStatus(req.Status))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, p)
}

// Dispense marks one item dispensed and returns the updated prescription
func (h *PrescriptionHandler) Dispense(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.prescriptionService.Dispense(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, p)
}
