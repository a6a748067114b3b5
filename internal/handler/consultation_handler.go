package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type ConsultationHandler struct {
	consultationService *service.ConsultationService
	log                 *zap.Logger
}

func NewConsultationHandler(consultationService *service.ConsultationService, log *zap.Logger) *ConsultationHandler {
	return &ConsultationHandler{consultationService: consultationService, log: log}
}

type ConsultationRequest struct {
	DoctorID  *uint  `json:"doctor_id"`
	VisitType string `json:"visit_type" binding:"omitempty,oneof=new follow_up emergency review referral"`
	Status    string `json:"status" binding:"omitempty,oneof=scheduled waiting in_progress completed cancelled"`

	ChiefComplaint           string `json:"chief_complaint" binding:"required"`
	HistoryPresentingIllness string `json:"history_presenting_illness"`

	Temperature            *float64 `json:"temperature" binding:"omitempty,gte=25,lte=45"`
	HeartRate              *int     `json:"heart_rate" binding:"omitempty,min=30,max=200"`
	RespiratoryRate        *int     `json:"respiratory_rate" binding:"omitempty,min=1"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic" binding:"omitempty,min=70,max=250"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic" binding:"omitempty,min=40,max=150"`
	OxygenSaturation       *int     `json:"oxygen_saturation" binding:"omitempty,min=50,max=100"`
	Weight                 *float64 `json:"weight" binding:"omitempty,gt=0,lt=1000"`
	Height                 *float64 `json:"height" binding:"omitempty,gt=0,lt=1000"`

	PhysicalExamination   string `json:"physical_examination"`
	Diagnosis             string `json:"diagnosis" binding:"required"`
	DifferentialDiagnosis string `json:"differential_diagnosis"`
	TreatmentPlan         string `json:"treatment_plan"`
	Notes                 string `json:"notes"`

	FollowUpDate  string `json:"follow_up_date" binding:"omitempty,datetime=2006-01-02"`
	FollowUpNotes string `json:"follow_up_notes"`
}

func (r ConsultationRequest) toModel() (*models.Consultation, error) {
	followUp, err := parseDate(r.FollowUpDate)
	if err != nil {
		return nil, err
	}
	return &models.Consultation{
		DoctorID:                 r.DoctorID,
		VisitType:                models.VisitType(r.VisitType),
		Status:                   models.ConsultationStatus(r.Status),
		ChiefComplaint:           r.ChiefComplaint,
		HistoryPresentingIllness: r.HistoryPresentingIllness,
		Temperature:              r.Temperature,
		HeartRate:                r.HeartRate,
		RespiratoryRate:          r.RespiratoryRate,
		BloodPressureSystolic:    r.BloodPressureSystolic,
		BloodPressureDiastolic:   r.BloodPressureDiastolic,
		OxygenSaturation:         r.OxygenSaturation,
		Weight:                   r.Weight,
		Height:                   r.Height,
		PhysicalExamination:      r.PhysicalExamination,
		Diagnosis:                r.Diagnosis,
		DifferentialDiagnosis:    r.DifferentialDiagnosis,
		TreatmentPlan:            r.TreatmentPlan,
		Notes:                    r.Notes,
		FollowUpDate:             followUp,
		FollowUpNotes:            r.FollowUpNotes,
	}, nil
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type DiagnosisRequest struct {
	Code        string `json:"code" binding:"max=20"`
	Description string `json:"description" binding:"required,max=500"`
	IsPrimary   bool   `json:"is_primary"`
	Notes       string `json:"notes"`
}

type LabOrderRequest struct {
	TestName      string `json:"test_name" binding:"required,max=200"`
	Priority      string `json:"priority" binding:"omitempty,oneof=routine urgent stat"`
	ClinicalNotes string `json:"clinical_notes"`
}

type LabUpdateRequest struct {
	Status        string  `json:"status" binding:"omitempty,oneof=ordered collected processing completed cancelled"`
	Results       string  `json:"results"`
	ClinicalNotes *string `json:"clinical_notes"`
}

// Create records a visit for the patient in the path
func (h *ConsultationHandler) Create(c *gin.Context) {
	var req ConsultationRequest
	if !bindJSON(c, &req) {
		return
	}
	consultation, err := req.toModel()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid follow_up_date")
		return
	}

	created, err := h.consultationService.Create(c.Request.Context(), actorFrom(c), c.Param("mrn"), consultation)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, created)
}

func (h *ConsultationHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	consultation, err := h.consultationService.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, consultation)
}

func (h *ConsultationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ConsultationRequest
	if !bindJSON(c, &req) {
		return
	}
	changes, err := req.toModel()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid follow_up_date")
		return
	}

	updated, err := h.consultationService.Update(c.Request.Context(), actorFrom(c), id, changes)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, updated)
}

func (h *ConsultationHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.consultationService.ChangeStatus(c.Request.Context(), actorFrom(c), id, models.ConsultationStatus(req.Status))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, updated)
}

// List filters consultations: ?patient_id=&doctor_id=&status=&date=YYYY-MM-DD&page=
func (h *ConsultationHandler) List(c *gin.Context) {
	f := repository.ConsultationFilter{
		Status:     models.ConsultationStatus(c.Query("status")),
		Pagination: pagination(c),
	}
	if v := parseQueryInt(c, "patient_id", 0); v > 0 {
		id := uint(v)
		f.PatientID = &id
	}
	if v := parseQueryInt(c, "doctor_id", 0); v > 0 {
		id := uint(v)
		f.DoctorID = &id
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	f.Date = date

	list, total, err := h.consultationService.List(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.PagedResponse(c, list, pageOf(f.Pagination, 20, total))
}

// ListForPatient returns a patient's visit history
func (h *ConsultationHandler) ListForPatient(c *gin.Context) {
	p := pagination(c)
	list, total, err := h.consultationService.ListForPatient(c.Request.Context(), c.Param("mrn"), p)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.PagedResponse(c, list, pageOf(p, 20, total))
}

func (h *ConsultationHandler) AddDiagnosis(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req DiagnosisRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.consultationService.AddDiagnosis(c.Request.Context(), actorFrom(c), id, &models.Diagnosis{
		Code:        req.Code,
		Description: req.Description,
		IsPrimary:   req.IsPrimary,
		Notes:       req.Notes,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, d)
}

func (h *ConsultationHandler) OrderLab(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req LabOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.consultationService.OrderLab(c.Request.Context(), actorFrom(c), id, &models.LabOrder{
		TestName:      req.TestName,
		Priority:      models.LabPriority(req.Priority),
		ClinicalNotes: req.ClinicalNotes,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, o)
}

func (h *ConsultationHandler) UpdateLabOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req LabUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.consultationService.UpdateLabOrder(c.Request.Context(), actorFrom(c), id, service.LabUpdate{
		Status:        models.LabOrderStatus(req.Status),
		Results:       req.Results,
		ClinicalNotes: req.ClinicalNotes,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, o)
}
