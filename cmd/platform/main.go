package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carelink/platform/internal/ai"
	"github.com/carelink/platform/internal/appointment"
	"github.com/carelink/platform/internal/audit"
	"github.com/carelink/platform/internal/connection"
	"github.com/carelink/platform/internal/intake"
	intakeapi "github.com/carelink/platform/internal/intake/api"
	intakeinfra "github.com/carelink/platform/internal/intake/infrastructure"
	"github.com/carelink/platform/internal/notification"
	"github.com/carelink/platform/internal/shared/auth"
	"github.com/carelink/platform/internal/shared/config"
	"github.com/carelink/platform/internal/shared/database"
	"github.com/carelink/platform/internal/shared/events"
	"github.com/carelink/platform/internal/shared/metrics"
	secmiddleware "github.com/carelink/platform/internal/shared/middleware"
)

// maxRequestBody caps request bodies; intake turns may carry base64
// images.
const maxRequestBody = 10 << 20

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	AI     *ai.Client
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running in limited mode without database...")
	} else {
		app.DB = db
		defer db.Close()

		// Run migrations
		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus with EventStoreDB (optional - skip if not available)
	bus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("EventStoreDB event bus initialized")
	}

	// Publisher may be nil; every consumer tolerates that.
	var publisher events.Publisher
	if app.Bus != nil {
		publisher = app.Bus
	}

	// Extraction service client
	app.AI = ai.NewClient(cfg.AI)
	if app.AI.Enabled() {
		fmt.Printf("Extraction service enabled (service: %s)\n", cfg.AI.URL)
	} else {
		fmt.Println("Extraction service disabled; turns answer with the fallback reply")
	}

	// Notification fan-out workers
	delivery := notification.NewDelivery(notification.DefaultDeliveryConfig(), notification.NewConsoleProvider())
	if err := delivery.Start(ctx); err != nil {
		fmt.Printf("Warning: notification delivery failed to start: %v\n", err)
	}
	defer delivery.Stop()

	dispatcher := notification.NewDispatcher()
	auditor := audit.NewRecorder(publisher)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.MaxBodySize(maxRequestBody))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	rateLimiter := secmiddleware.NewIPRateLimiter(20, 40)
	r.Use(rateLimiter.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required for now in dev mode)
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		if app.DB != nil {
			notificationRepo := notification.NewRepository(app.DB.Pool)

			// Connection module
			connectionRepo := connection.NewRepository(app.DB.Pool, notificationRepo)
			connectionHandler := connection.NewHandler(connectionRepo, dispatcher, delivery, publisher)
			r.Mount("/connections", connectionHandler.Routes())

			// Appointment module
			appointmentRepo := appointment.NewRepository(app.DB.Pool)
			appointmentHandler := appointment.NewHandler(appointmentRepo, connectionRepo, notificationRepo, dispatcher, delivery)
			r.Mount("/appointments", appointmentHandler.Routes())

			// Notification module
			notificationHandler := notification.NewHandler(notificationRepo)
			r.Mount("/notifications", notificationHandler.Routes())

			// Intake module
			sessionRepo := intakeinfra.NewPostgresSessionRepository(app.DB.Pool)
			messageRepo := intakeinfra.NewPostgresMessageRepository(app.DB.Pool)
			intakeService := intake.NewService(intake.Deps{
				Sessions:      sessionRepo,
				Messages:      messageRepo,
				AI:            app.AI,
				Connections:   connectionRepo,
				Appointments:  appointmentRepo,
				Notifications: notificationRepo,
				Dispatcher:    dispatcher,
				Delivery:      delivery,
				Auditor:       auditor,
				Bus:           publisher,
			}, cfg.Intake)
			intakeHandler := intakeapi.NewHandler(intakeService)
			r.Mount("/intake", intakeHandler.Routes())
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("CareLink Clinical Intake Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Extraction:     %s (enabled: %v)\n", cfg.AI.URL, cfg.AI.Enabled)
	fmt.Printf("EventStoreDB:   %s:%d\n", cfg.EventStore.Host, cfg.EventStore.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "CareLink Clinical Intake Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		// Check database
		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		// Check EventStoreDB
		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		// Check extraction service
		if app.AI != nil && app.AI.Enabled() {
			if err := app.AI.Health(r.Context()); err != nil {
				checks["extraction"] = "not ready: " + err.Error()
			} else {
				checks["extraction"] = "ready"
			}
		} else {
			checks["extraction"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
