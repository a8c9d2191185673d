// callprep - sales call preparation coach server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/callprep/internal/api"
	"github.com/ashureev/callprep/internal/coach"
	"github.com/ashureev/callprep/internal/config"
	"github.com/ashureev/callprep/internal/identity"
	"github.com/ashureev/callprep/internal/logging"
	"github.com/ashureev/callprep/internal/middleware"
	"github.com/ashureev/callprep/internal/store"
	"github.com/ashureev/callprep/internal/transport/rpc"
	"github.com/ashureev/callprep/internal/ws"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logging.Preinit()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}, os.Stdout)
	if err != nil {
		slog.Error("Failed to initialize logging", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "grpc", cfg.GRPCAddr != "")

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.Session.DSN)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store ready", "dsn", cfg.Session.DSN)

	playbook, err := coach.LoadPlaybook(cfg.PlaybookPath)
	if err != nil {
		slog.Error("Failed to load playbook", "error", err)
		os.Exit(1)
	}
	slog.Info("Playbook loaded", "path", cfg.PlaybookPath, "stages", len(playbook.Stages))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services.
	svc := coach.NewService(repo, coach.New(playbook), logger)
	connections := ws.NewConnectionManager()

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo)
	coachHandler := api.NewCoachHandler(svc,
		api.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		cfg.MaxRequestBody)
	wsHandler := ws.NewHandler(svc, connections, cfg.AllowedOrigins, cfg.IsDevelopment(), cfg.MaxRequestBody)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterRoutes(r)
	coachHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/coach", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	store.StartTTLWorker(ctx, repo, cfg.Session.SweepInterval, cfg.Session.TTL, func(key store.SessionKey) {
		connections.CloseSession(key)
		svc.Forget(key)
	})

	// Start optional gRPC server.
	var grpcServer *rpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC", "error", err, "addr", cfg.GRPCAddr)
			os.Exit(1)
		}
		grpcServer = rpc.NewServer(svc, logger)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				slog.Error("gRPC server failed", "error", err)
				stop()
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
