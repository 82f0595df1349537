package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/brightsmile/clinic/internal/config"
	"github.com/brightsmile/clinic/internal/domain/appointment"
	"github.com/brightsmile/clinic/internal/domain/billing"
	"github.com/brightsmile/clinic/internal/domain/dentist"
	"github.com/brightsmile/clinic/internal/domain/patient"
	"github.com/brightsmile/clinic/internal/platform/assistant"
	"github.com/brightsmile/clinic/internal/platform/auth"
	"github.com/brightsmile/clinic/internal/platform/db"
	"github.com/brightsmile/clinic/internal/platform/middleware"
	"github.com/brightsmile/clinic/internal/platform/notification"
	"github.com/brightsmile/clinic/internal/platform/scheduling"
	"github.com/brightsmile/clinic/internal/platform/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Dental clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// tokenCmd mints staff access tokens from the command line. Handy for
// bootstrapping the first admin and for service integrations.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			name, _ := cmd.Flags().GetString("name")
			roles, _ := cmd.Flags().GetString("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET must be set to issue tokens")
			}

			token, err := auth.IssueToken(auth.JWTConfig{
				SigningKey: []byte(cfg.JWTSecret),
				Issuer:     cfg.PracticeName,
			}, subject, name, strings.Split(roles, ","), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Staff member identifier")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("roles", "receptionist", "Comma-separated roles (admin, dentist, hygienist, receptionist)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Rate limiting on all API routes
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Practice identity shared by the scheduler and the assistant
	practiceHours := scheduling.DefaultPracticeHours()
	practiceInfo := assistant.Info{
		Name:            cfg.PracticeName,
		Address:         cfg.PracticeAddress,
		Phone:           cfg.PracticePhone,
		AfterHoursPhone: cfg.AfterHoursPhone,
		Hours:           practiceHours,
		Services:        assistant.DefaultServices(),
		Insurance:       assistant.AcceptedInsurance(),
	}

	// Patient-facing assistant endpoints stay outside the auth wall
	var responder assistant.Responder
	if cfg.ChatAPIKey != "" {
		responder = assistant.NewChatClient(cfg.ChatAPIURL, cfg.ChatAPIKey, cfg.ChatModel)
		logger.Info().Str("model", cfg.ChatModel).Msg("chat responder enabled")
	} else {
		logger.Info().Msg("CHAT_API_KEY not set; assistant uses rule-based responses only")
	}
	assistantHandler := assistant.NewHandler(assistant.NewEngine(practiceInfo, responder))
	assistantHandler.RegisterRoutes(apiV1)

	// Staff routes require a token outside development
	staff := apiV1.Group("")
	if cfg.IsDev() {
		staff.Use(auth.DevAuthMiddleware())
	} else {
		staff.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.JWTSecret),
			Issuer:     cfg.PracticeName,
		}))
	}

	// Patient domain
	patientRepo := patient.NewRepoPG(pool)
	patientSvc := patient.NewService(patientRepo)
	patientHandler := patient.NewHandler(patientSvc)
	patientHandler.RegisterRoutes(staff)

	// Dentist domain
	dentistRepo := dentist.NewRepoPG(pool)
	dentistSvc := dentist.NewService(dentistRepo)
	dentistHandler := dentist.NewHandler(dentistSvc)
	dentistHandler.RegisterRoutes(staff)

	// Appointment domain
	granularity := time.Duration(cfg.SlotGranularityMinutes) * time.Minute
	apptRepo := appointment.NewRepoPG(pool)
	apptSvc := appointment.NewService(apptRepo, dentistRepo, practiceHours, granularity)
	apptHandler := appointment.NewHandler(apptSvc)
	apptHandler.RegisterRoutes(staff)

	// Billing domain. Multi-statement mutations run inside a transaction.
	billingRepo := billing.NewRepoPG(pool)
	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	billingSvc := billing.NewService(billingRepo, txRunner)
	billingHandler := billing.NewHandler(billingSvc)
	billingHandler.RegisterRoutes(staff)

	// Dashboard statistics read straight from the stores
	statsHandler := stats.NewHandler(stats.Sources{
		Patients:     patientRepo.All,
		Appointments: apptRepo.All,
		Invoices:     billingRepo.AllInvoices,
	})
	statsHandler.RegisterRoutes(staff)

	// Notifications and reminders
	templates := notification.NewTemplateEngine()
	sender := notification.NewLogSender(logger)
	notifyMgr := notification.NewManager(sender, sender, templates)
	notifyHandler := notification.NewHandler(notifyMgr)
	notifyHandler.RegisterRoutes(staff)

	reminders := notification.NewReminderService(notifyMgr, apptSvc, billingSvc,
		patientRepo, dentistRepo, cfg.PracticeName, logger)

	// Daily reminder loop. Appointment reminders cover the next two days,
	// payment reminders go out for anything past due.
	reminderCtx, reminderCancel := context.WithCancel(ctx)
	defer reminderCancel()
	go runReminderLoop(reminderCtx, reminders, logger)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// runReminderLoop fires the reminder batches once at startup and then every
// 24 hours until the context is cancelled.
func runReminderLoop(ctx context.Context, reminders *notification.ReminderService, logger zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	run := func() {
		if n, err := reminders.SendAppointmentReminders(ctx, 2); err != nil {
			logger.Error().Err(err).Msg("appointment reminder batch failed")
		} else if n > 0 {
			logger.Info().Int("sent", n).Msg("appointment reminders sent")
		}
		if n, err := reminders.SendPaymentReminders(ctx); err != nil {
			logger.Error().Err(err).Msg("payment reminder batch failed")
		} else if n > 0 {
			logger.Info().Int("sent", n).Msg("payment reminders sent")
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
