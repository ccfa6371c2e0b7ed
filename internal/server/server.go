package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mouldconnect/apiserver/config"
	"github.com/mouldconnect/apiserver/internal/db"
	"github.com/mouldconnect/apiserver/internal/handlers"
	"github.com/mouldconnect/apiserver/internal/logging"
	"github.com/mouldconnect/apiserver/internal/metrics"
	"github.com/mouldconnect/apiserver/internal/mq"
	"github.com/mouldconnect/apiserver/internal/notify"
	"github.com/mouldconnect/apiserver/internal/otp"
	"github.com/mouldconnect/apiserver/internal/password"
	"github.com/mouldconnect/apiserver/internal/services"
	"github.com/mouldconnect/apiserver/internal/storage"
	"github.com/mouldconnect/apiserver/internal/store"
	"github.com/mouldconnect/apiserver/internal/token"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *slog.Logger
}

// New wires every dependency from cfg and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		MemoryKB:    cfg.Argon2.MemoryKB,
		Time:        cfg.Argon2.Time,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  password.DefaultConfig().SaltLength,
		KeyLength:   password.DefaultConfig().KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("argon2 config: %w", err)
	}

	notifier, err := notify.New(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	events := mq.NewEventPublisher(broker, cfg.MQ.Channel, logger)

	userRepo := store.NewUserRepository(dbConn)
	tokens := token.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)

	authService := services.NewAuthService(services.AuthDeps{
		Users:    userRepo,
		Counters: store.NewCounterRepository(dbConn),
		Hasher:   hasher,
		OTPs:     otp.NewIssuer(),
		Tokens:   tokens,
		Notifier: notifier,
		Events:   events,
		Logger:   logger,
	}, services.AuthOptions{
		UserCodePrefix:       cfg.UserCodePrefix,
		IssueTokenOnRegister: cfg.RegisterIssuesToken,
	})
	userService := services.NewUserService(userRepo)
	profileService := services.NewProfileService(store.NewProfileRepository(dbConn), objects, events, logger)

	router := newRouter(routes{
		auth:        handlers.NewAuthHandler(authService, userService, logger),
		profile:     handlers.NewProfileHandler(profileService, logger),
		assets:      handlers.NewAssetHandler(objects, logger),
		requireAuth: handlers.RequireAuth(tokens),
		metrics:     metrics.NewHTTP(),
		corsOrigins: cfg.CORSAllowedOrigins,
		logger:      logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 4000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		logger:     logger,
	}, nil
}

type routes struct {
	auth        *handlers.AuthHandler
	profile     *handlers.ProfileHandler
	assets      *handlers.AssetHandler
	requireAuth func(http.Handler) http.Handler
	metrics     *metrics.HTTP
	corsOrigins []string
	logger      *slog.Logger
}

func newRouter(rt routes) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(rt.logger),
		middleware.Recoverer,
		rt.metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   rt.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, rt.auth, rt.requireAuth)
		})
		r.Route("/profile", func(r chi.Router) {
			handlers.ProfileRouter(r, rt.profile, rt.requireAuth)
		})
	})
	router.Route("/"+storage.PublicPrefix, func(r chi.Router) {
		handlers.AssetRouter(r, rt.assets)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			s.logger.Warn("close mq", slog.Any("err", mqErr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
