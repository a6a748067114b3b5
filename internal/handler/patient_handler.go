package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type PatientHandler struct {
	patientService *service.PatientService
	log            *zap.Logger
	loc            *time.Location
}

func NewPatientHandler(patientService *service.PatientService, log *zap.Logger, loc *time.Location) *PatientHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PatientHandler{patientService: patientService, log: log, loc: loc}
}

type ContactRequest struct {
	Name         string `json:"name" binding:"required,max=200"`
	Relationship string `json:"relationship" binding:"required,max=50"`
	PhoneNumber  string `json:"phone_number" binding:"required,kephone"`
	IsPrimary    bool   `json:"is_primary"`
}

func (r ContactRequest) toModel() models.EmergencyContact {
	return models.EmergencyContact{
		Name:         r.Name,
		Relationship: r.Relationship,
		PhoneNumber:  r.PhoneNumber,
		IsPrimary:    r.IsPrimary,
	}
}

type PatientRequest struct {
	FirstName   string `json:"first_name" binding:"required,max=100"`
	MiddleName  string `json:"middle_name" binding:"max=100"`
	LastName    string `json:"last_name" binding:"required,max=100"`
	DateOfBirth string `json:"date_of_birth" binding:"required,datetime=2006-01-02"`
	Gender      string `json:"gender" binding:"required,oneof=M F O"`
	BloodGroup  string `json:"blood_group" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O- UNKNOWN"`

	PhoneNumber      string `json:"phone_number" binding:"required,kephone"`
	AlternativePhone string `json:"alternative_phone" binding:"omitempty,kephone"`
	Email            string `json:"email" binding:"omitempty,email"`

	County    string `json:"county" binding:"max=100"`
	SubCounty string `json:"sub_county" binding:"max=100"`
	Village   string `json:"village" binding:"max=200"`
	Landmark  string `json:"landmark" binding:"max=200"`

	NextOfKinName         string `json:"next_of_kin_name" binding:"max=200"`
	NextOfKinRelationship string `json:"next_of_kin_relationship" binding:"max=50"`
	NextOfKinPhone        string `json:"next_of_kin_phone" binding:"omitempty,kephone"`

	Allergies         string `json:"allergies"`
	ChronicConditions string `json:"chronic_conditions"`
	Disabilities      string `json:"disabilities"`

	NationalID string `json:"national_id" binding:"omitempty,numeric,max=10"`
	NHIFNumber string `json:"nhif_number" binding:"max=20"`

	EmergencyContacts []ContactRequest `json:"emergency_contacts" binding:"omitempty,dive"`
}

func (r PatientRequest) toModel() (*models.Patient, error) {
	dob, err := time.Parse(dateLayout, r.DateOfBirth)
	if err != nil {
		return nil, err
	}
	p := &models.Patient{
		FirstName:             r.FirstName,
		MiddleName:            r.MiddleName,
		LastName:              r.LastName,
		DateOfBirth:           dob,
		Gender:                models.Gender(r.Gender),
		BloodGroup:            r.BloodGroup,
		PhoneNumber:           r.PhoneNumber,
		AlternativePhone:      r.AlternativePhone,
		Email:                 r.Email,
		County:                r.County,
		SubCounty:             r.SubCounty,
		Village:               r.Village,
		Landmark:              r.Landmark,
		NextOfKinName:         r.NextOfKinName,
		NextOfKinRelationship: r.NextOfKinRelationship,
		NextOfKinPhone:        r.NextOfKinPhone,
		Allergies:             r.Allergies,
		ChronicConditions:     r.ChronicConditions,
		Disabilities:          r.Disabilities,
		NHIFNumber:            r.NHIFNumber,
	}
	if r.NationalID != "" {
		id := r.NationalID
		p.NationalID = &id
	}
	for _, c := range r.EmergencyContacts {
		p.EmergencyContacts = append(p.EmergencyContacts, c.toModel())
	}
	return p, nil
}

// patientView adds the derived fields to a patient
type patientView struct {
	*models.Patient
	FullName string `json:"full_name"`
	Age      int    `json:"age"`
	AgeGroup string `json:"age_group"`
}

func (h *PatientHandler) view(p *models.Patient) patientView {
	age := p.AgeAt(time.Now().In(h.loc))
	return patientView{Patient: p, FullName: p.FullName(), Age: age, AgeGroup: models.AgeGroup(age)}
}

func (h *PatientHandler) views(list []models.Patient) []patientView {
	out := make([]patientView, len(list))
	for i := range list {
		out[i] = h.view(&list[i])
	}
	return out
}

// Register creates a patient and assigns the next MRN
func (h *PatientHandler) Register(c *gin.Context) {
	var req PatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := req.toModel()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid date_of_birth")
		return
	}

	created, err := h.patientService.Register(c.Request.Context(), actorFrom(c), p)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, h.view(created))
}

// Get returns one patient by MRN
func (h *PatientHandler) Get(c *gin.Context) {
	p, err := h.patientService.Get(c.Request.Context(), actorFrom(c), c.Param("mrn"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, h.view(p))
}

// Update replaces a patient's demographics
func (h *PatientHandler) Update(c *gin.Context) {
	var req PatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := req.toModel()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid date_of_birth")
		return
	}

	updated, err := h.patientService.Update(c.Request.Context(), actorFrom(c), c.Param("mrn"), p)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, h.view(updated))
}

// Deactivate hides a patient record
func (h *PatientHandler) Deactivate(c *gin.Context) {
	if err := h.patientService.Deactivate(c.Request.Context(), actorFrom(c), c.Param("mrn")); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.MessageResponse(c, "Patient deactivated")
}

// List searches patients: ?q=&type=mrn|name|id|phone|all&page=
func (h *PatientHandler) List(c *gin.Context) {
	q := repository.PatientSearch{
		Query:      c.Query("q"),
		Type:       c.DefaultQuery("type", "all"),
		Pagination: repository.Pagination{Page: parseQueryInt(c, "page", 1)},
	}
	switch q.Type {
	case "mrn", "name", "id", "phone", "all":
	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "type must be one of mrn, name, id, phone, all")
		return
	}

	list, total, err := h.patientService.Search(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.PagedResponse(c, h.views(list), pageOf(q.Pagination, 20, total))
}

// QuickSearch serves type-ahead lookups
func (h *PatientHandler) QuickSearch(c *gin.Context) {
	list, err := h.patientService.QuickSearch(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	type hit struct {
		MRN      string `json:"mrn"`
		FullName string `json:"full_name"`
		Age      int    `json:"age"`
		Gender   string `json:"gender"`
		Phone    string `json:"phone"`
	}
	now := time.Now().In(h.loc)
	hits := make([]hit, len(list))
	for i, p := range list {
		hits[i] = hit{MRN: p.MRN, FullName: p.FullName(), Age: p.AgeAt(now), Gender: string(p.Gender), Phone: p.PhoneNumber}
	}
	utils.SuccessResponse(c, hits)
}

// AddContact adds an emergency contact
func (h *PatientHandler) AddContact(c *gin.Context) {
	var req ContactRequest
	if !bindJSON(c, &req) {
		return
	}
	contact := req.toModel()

	created, err := h.patientService.AddContact(c.Request.Context(), actorFrom(c), c.Param("mrn"), &contact)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, created)
}

// LastVitals returns the latest recorded vitals, or null
func (h *PatientHandler) LastVitals(c *gin.Context) {
	v, err := h.patientService.LastVitals(c.Request.Context(), c.Param("mrn"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, v)
}
