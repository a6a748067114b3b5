package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hms-backend/internal/config"
	"hms-backend/internal/database"
	"hms-backend/internal/handler"
	"hms-backend/internal/models"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/logger"
	"hms-backend/pkg/metrics"
	"hms-backend/pkg/tracer"
	"hms-backend/pkg/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hms",
		Short:         "Hospital records service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every command needs
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	metrics *metrics.Collector

	auth          *service.AuthService
	patients      *service.PatientService
	consultations *service.ConsultationService
	prescriptions *service.PrescriptionService
	medications   *service.MedicationService
	reports       *service.ReportService
	audit         *service.AuditService
	users         *service.UserService
	sweeper       *service.WorkerService
}

func bootstrap() (*app, error) {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// 2. Initialize JWT utilities with config
	utils.InitJWT(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// 3. Initialize database connection
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("hms", reg)

	// 4. Initialize repositories
	userRepo := repository.NewUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	patientRepo := repository.NewPatientRepo(db)
	mrnRepo := repository.NewMRNRepo(db)
	consultationRepo := repository.NewConsultationRepo(db)
	labOrderRepo := repository.NewLabOrderRepo(db)
	prescriptionRepo := repository.NewPrescriptionRepo(db)
	medicationRepo := repository.NewMedicationRepo(db)
	reportRepo := repository.NewReportRepo(db)

	// 5. Initialize services
	loc := cfg.Hospital.Location()
	audit := service.NewAuditService(auditRepo, log, m)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		metrics: m,

		auth: service.NewAuthService(userRepo, sessionRepo, audit, log, m, cfg.Security.LockoutThreshold),
		patients: service.NewPatientService(db, patientRepo, mrnRepo, consultationRepo, audit, log, m, service.PatientServiceConfig{
			MRNPrefix: cfg.Hospital.MRNPrefix,
			Location:  loc,
		}),
		consultations: service.NewConsultationService(consultationRepo, labOrderRepo, patientRepo, audit, log, m, loc),
		prescriptions: service.NewPrescriptionService(db, prescriptionRepo, consultationRepo, medicationRepo, audit, log, m),
		medications:   service.NewMedicationService(medicationRepo, audit, log),
		reports:       service.NewReportService(reportRepo, patientRepo, sessionRepo, audit, log, loc),
		audit:         audit,
		users:         service.NewUserService(userRepo, audit, log),
		sweeper:       service.NewWorkerService(sessionRepo, log, m, cfg.Security.SessionSweepInterval),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := database.Migrate(a.db, a.log); err != nil {
					return err
				}
			}
			return a.serve()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving")
	return cmd
}

func (a *app) serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, a.cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	if err := handler.RegisterValidators(); err != nil {
		return err
	}

	// Start background worker in goroutine
	go a.sweeper.Start(ctx)

	gin.SetMode(a.cfg.Server.GinMode)
	router := handler.NewRouter(handler.Deps{
		Config:        a.cfg,
		Log:           a.log,
		Metrics:       a.metrics,
		DB:            a.db,
		Auth:          a.auth,
		Patients:      a.patients,
		Consultations: a.consultations,
		Prescriptions: a.prescriptions,
		Medications:   a.medications,
		Reports:       a.reports,
		Audit:         a.audit,
		Users:         a.users,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	a.log.Info("server exited")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return database.Migrate(a.db, a.log)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default staff accounts and medication catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.Migrate(a.db, a.log); err != nil {
				return err
			}
			return database.Seed(a.db, a.log)
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	var in service.NewUser
	var role string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			in.Role = models.Role(role)
			u, err := a.users.Create(cmd.Context(), service.Actor{IPAddress: "cli"}, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%d\n", u.Username, u.Role, u.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&in.Username, "username", "", "login name")
	createCmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	createCmd.Flags().StringVar(&role, "role", "nurse", "staff role")
	createCmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	createCmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	createCmd.Flags().StringVar(&in.Email, "email", "", "e-mail address")
	createCmd.Flags().StringVar(&in.EmployeeID, "employee-id", "", "employee number")
	createCmd.Flags().StringVar(&in.Department, "department", "", "department")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	unlockCmd := &cobra.Command{
		Use:   "unlock <username>",
		Short: "Clear a lockout after repeated failed logins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			u, err := a.users.UnlockByUsername(cmd.Context(), service.Actor{IPAddress: "cli"}, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", u.Username)
			return nil
		},
	}

	cmd.AddCommand(createCmd, unlockCmd)
	return cmd
}
