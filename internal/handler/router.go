package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/access"
	"hms-backend/internal/config"
	"hms-backend/internal/middleware"
	"hms-backend/internal/models"
	"hms-backend/internal/service"
	"hms-backend/pkg/metrics"
)

// Deps is everything the HTTP layer is built from
type Deps struct {
	Config  *config.Config
	Log     *zap.Logger
	Metrics *metrics.Collector
	DB      *gorm.DB

	Auth          *service.AuthService
	Patients      *service.PatientService
	Consultations *service.ConsultationService
	Prescriptions *service.PrescriptionService
	Medications   *service.MedicationService
	Reports       *service.ReportService
	Audit         *service.AuditService
	Users         *service.UserService
}

// NewRouter wires middleware, handlers and routes
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Tracing(d.Config.Tracing.ServiceName),
		middleware.Logger(d.Log),
		middleware.Metrics(d.Metrics),
		middleware.CORS(d.Config),
	)

	loc := d.Config.Hospital.Location()
	authHandler := NewAuthHandler(d.Auth, d.Log, d.Config.Server.GinMode == gin.ReleaseMode)
	patientHandler := NewPatientHandler(d.Patients, d.Log, loc)
	consultationHandler := NewConsultationHandler(d.Consultations, d.Log)
	prescriptionHandler := NewPrescriptionHandler(d.Prescriptions, d.Log)
	medicationHandler := NewMedicationHandler(d.Medications, d.Log)
	reportHandler := NewReportHandler(d.Reports, d.Log)
	auditHandler := NewAuditHandler(d.Audit, d.Log)
	userHandler := NewUserHandler(d.Users, d.Log)
	healthHandler := NewHealthHandler(d.DB)

	ac := middleware.NewAccessControl(d.Log, d.Metrics)
	can := ac.Require
	audit := func(action models.AuditAction, model string) gin.HandlerFunc {
		return middleware.AuditAction(d.Audit, action, model)
	}

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api/v1")

	// Auth routes (public)
	loginLimiter := middleware.NewIPRateLimiter(d.Config.Security.LoginRatePerMinute)
	auth := api.Group("/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), authHandler.Login)
		auth.POST("/refresh", loginLimiter.Middleware(), authHandler.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())

	me := protected.Group("/auth")
	{
		me.POST("/logout", authHandler.Logout)
		me.GET("/me", authHandler.Me)
		me.GET("/sessions", authHandler.Sessions)
	}

	patients := protected.Group("/patients")
	{
		patients.GET("", can(access.ViewPatient), audit(models.AuditView, "Patient"), patientHandler.List)
		patients.GET("/search", can(access.ViewPatient), patientHandler.QuickSearch)
		patients.POST("", can(access.RegisterPatient), patientHandler.Register)
		patients.GET("/:mrn", can(access.ViewPatient), patientHandler.Get)
		patients.PUT("/:mrn", can(access.EditPatient), patientHandler.Update)
		patients.DELETE("/:mrn", can(access.DeactivatePatient), patientHandler.Deactivate)
		patients.POST("/:mrn/contacts", can(access.EditPatient), patientHandler.AddContact)
		patients.GET("/:mrn/last-vitals", can(access.RecordConsultation), patientHandler.LastVitals)
		patients.GET("/:mrn/consultations", can(access.ViewConsultation), audit(models.AuditView, "Consultation"), consultationHandler.ListForPatient)
		patients.POST("/:mrn/consultations", can(access.RecordConsultation), consultationHandler.Create)
	}

	consultations := protected.Group("/consultations")
	{
		consultations.GET("", can(access.ViewConsultation), audit(models.AuditView, "Consultation"), consultationHandler.List)
		consultations.GET("/:id", can(access.ViewConsultation), consultationHandler.Get)
		consultations.PUT("/:id", can(access.RecordConsultation), consultationHandler.Update)
		consultations.PATCH("/:id/status", can(access.RecordConsultation), consultationHandler.ChangeStatus)
		consultations.POST("/:id/diagnoses", can(access.RecordConsultation), consultationHandler.AddDiagnosis)
		consultations.POST("/:id/lab-orders", can(access.OrderLab), consultationHandler.OrderLab)
		consultations.POST("/:id/prescription", can(access.Prescribe), prescriptionHandler.Create)
	}

	protected.PATCH("/lab-orders/:id", can(access.ProcessLab), consultationHandler.UpdateLabOrder)

	prescriptions := protected.Group("/prescriptions")
	{
		prescriptions.GET("", can(access.ViewPrescription), audit(models.AuditView, "Prescription"), prescriptionHandler.List)
		prescriptions.GET("/:id", can(access.ViewPrescription), audit(models.AuditView, "Prescription"), prescriptionHandler.Get)
		prescriptions.POST("/:id/items", can(access.Prescribe), prescriptionHandler.AddItem)
		prescriptions.PATCH("/:id/status", can(access.Dispense), prescriptionHandler.ChangeStatus)
	}

	protected.POST("/prescription-items/:id/dispense", can(access.Dispense), prescriptionHandler.Dispense)

	medications := protected.Group("/medications")
	{
		medications.GET("", medicationHandler.List)
		medications.GET("/search", medicationHandler.Search)
		medications.POST("", can(access.ManageMedications), medicationHandler.Create)
		medications.PUT("/:id", can(access.ManageMedications), medicationHandler.Update)
	}

	reports := protected.Group("/reports")
	reports.Use(can(access.ViewReports))
	{
		reports.GET("/dashboard", reportHandler.Dashboard)
		reports.GET("/daily", audit(models.AuditView, "Report"), reportHandler.Daily)
		reports.GET("/monthly", audit(models.AuditView, "Report"), reportHandler.Monthly)
	}

	auditLogs := protected.Group("/audit-logs")
	auditLogs.Use(can(access.ViewAudit))
	{
		auditLogs.GET("", audit(models.AuditView, "AuditLog"), auditHandler.List)
		auditLogs.GET("/export", auditHandler.Export)
	}

	users := protected.Group("/users")
	users.Use(can(access.ManageUsers))
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.POST("/:id/unlock", userHandler.Unlock)
	}

	return r
}
