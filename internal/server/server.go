package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-hq/apiserver/config"
	"github.com/gatehouse-hq/apiserver/internal/db"
	"github.com/gatehouse-hq/apiserver/internal/handlers"
	"github.com/gatehouse-hq/apiserver/internal/mailer"
	"github.com/gatehouse-hq/apiserver/internal/mq"
	"github.com/gatehouse-hq/apiserver/internal/services"
	"github.com/gatehouse-hq/apiserver/internal/storage"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/internal/token"
	"github.com/gatehouse-hq/apiserver/types"
)

// Server wraps the HTTP server, router and the shared infrastructure
// handles it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	bus        *mq.Bus
	worker     *mailer.Worker
	logger     *slog.Logger

	cancelWorker context.CancelFunc
}

// New constructs a fully wired Server from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SESSION_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	accountRepo := store.NewAccountRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	adminRepo := store.NewAdminRepository(dbConn)
	employeeRepo := store.NewEmployeeRepository(dbConn)
	visitorRepo := store.NewVisitorRepository(dbConn)
	attendanceRepo := store.NewAttendanceRepository(dbConn)
	otpRepo := store.NewOTPRepository(redisClient)

	tokens := token.NewManager(jwtSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	bus, worker := buildMessaging(ctx, cfg, logger)
	exportStorage := buildStorage(ctx, cfg, logger)

	accountService := services.NewAccountService(accountRepo, adminRepo, employeeRepo, visitorRepo, sessionRepo, logger)
	sessionService := services.NewSessionService(sessionRepo, tokens)
	authService := services.NewAuthService(tokens, accountRepo, sessionService, adminRepo, employeeRepo, visitorRepo, logger)

	var events services.ClockEventPublisher
	var mail services.MailJobPublisher
	if bus != nil {
		events = bus
		mail = bus
	}
	attendanceService := services.NewAttendanceService(attendanceRepo, employeeRepo, visitorRepo, accountRepo, events, logger)
	otpService := services.NewOTPService(otpRepo, accountRepo, mail, logger)
	reportService := services.NewReportService(attendanceRepo, exportStorage, logger)

	authHandler := handlers.NewAuthHandler(
		accountService,
		sessionService,
		authService,
		cfg.IsProduction(),
		cfg.Auth.AccessTTL,
		cfg.Auth.RefreshTTL,
	)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService, accountService, reportService)
	otpHandler := handlers.NewOTPHandler(otpService, accountService)
	employeeHandler := handlers.NewEmployeeHandler(accountService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", handlers.Healthz)
	router.Route("/admins", func(r chi.Router) {
		handlers.RegisterRouter(r, authHandler, types.RoleAdmin)
	})
	router.Route("/employees", func(r chi.Router) {
		handlers.RegisterRouter(r, authHandler, types.RoleEmployee)
		handlers.EmployeeRouter(r, employeeHandler)
	})
	router.Route("/visitors", func(r chi.Router) {
		handlers.RegisterRouter(r, authHandler, types.RoleVisitor)
	})
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/otp", func(r chi.Router) {
		handlers.OTPRouter(r, otpHandler)
	})
	router.Route("/attendance", func(r chi.Router) {
		handlers.AttendanceRouter(r, attendanceHandler, authHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		redis:      redisClient,
		bus:        bus,
		worker:     worker,
		logger:     logger,
	}, nil
}

// buildMessaging initializes the configured broker and, when a mail relay
// is configured, the delivery worker. Messaging is optional: without it
// the server still runs, mail and clock events are just dropped with a
// warning at startup.
func buildMessaging(ctx context.Context, cfg config.Config, logger *slog.Logger) (*mq.Bus, *mailer.Worker) {
	var backend mq.Backend
	var err error

	switch cfg.MQ.Backend {
	case "pubsub":
		backend, err = mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		backend, err = mq.NewRabbitMQClient(cfg.RabbitMQ)
	}
	if err != nil {
		logger.Warn("message broker unavailable, mail and clock events disabled", "backend", cfg.MQ.Backend, "error", err)
		return nil, nil
	}

	bus := mq.NewBus(backend, cfg.MQ.MailChannel, cfg.MQ.ClockChannel)

	sender, err := mailer.NewClient(cfg.Mailer)
	if err != nil {
		logger.Warn("mail relay not configured, mail delivery disabled", "error", err)
		return bus, nil
	}
	return bus, mailer.NewWorker(bus, sender, logger)
}

// buildStorage initializes the export object store. Also optional: the
// export endpoint reports the absence, everything else is unaffected.
func buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) services.ExportStorage {
	var backend storage.ObjectStorage
	var err error

	switch cfg.Storage.Backend {
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.GCS)
	default:
		backend, err = storage.NewMinioClient(cfg.Minio)
	}
	if err != nil {
		logger.Warn("export storage unavailable, attendance exports disabled", "backend", cfg.Storage.Backend, "error", err)
		return nil
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		logger.Warn("export bucket unavailable, attendance exports disabled", "bucket", backend.Bucket(), "error", err)
		return nil
	}
	return storage.NewStorage(backend)
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the mail worker, if configured, and the HTTP server.
func (s *Server) Start() error {
	if s.worker != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelWorker = cancel
		go func() {
			if err := s.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("mail worker stopped", "error", err)
			}
		}()
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown of the server and its handles.
func (s *Server) Shutdown() error {
	if s.cancelWorker != nil {
		s.cancelWorker()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
