package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"garage-service/internal/config"
	availGet "garage-service/internal/http-server/handlers/availability/get"
	availUpdate "garage-service/internal/http-server/handlers/availability/update"
	bookingAssign "garage-service/internal/http-server/handlers/bookings/assign"
	bookingCancel "garage-service/internal/http-server/handlers/bookings/cancel"
	bookingCreate "garage-service/internal/http-server/handlers/bookings/create"
	bookingGet "garage-service/internal/http-server/handlers/bookings/get"
	bookingStatus "garage-service/internal/http-server/handlers/bookings/status"
	slotGet "garage-service/internal/http-server/handlers/slots/get"
	taskStatus "garage-service/internal/http-server/handlers/tasks/status"
	"garage-service/internal/lock"
	svc "garage-service/internal/service"
	"garage-service/internal/storage/postgres"
	"garage-service/pkg/logger/slogpretty"
	"garage-service/pkg/middleware/mwauth"
	"garage-service/pkg/middleware/mwlogger"
	"garage-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		log.Error("Failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		locker, err = lock.NewRedisLock(cfg.RedisAddr)
		if err != nil {
			log.Error("Failed to init redis lock", sl.Err(err))
			os.Exit(1)
		}
	} else {
		log.Warn("Redis address is empty, using in-process lock")
		locker = lock.NewLocalLock()
	}

	service := svc.NewService(storage, locker)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Public
	router.Get("/mechanics/{id}/availability", availGet.New(log, service))
	router.Get("/slots/available", slotGet.New(log, service))

	// Authenticated
	router.Group(func(r chi.Router) {
		r.Use(mwauth.New(log, cfg.JWTSecret))

		// Bookings
		r.Post("/bookings", bookingCreate.New(log, service))
		r.Get("/bookings/{id}", bookingGet.New(log, service))
		r.Put("/bookings/{id}/assign-mechanic", bookingAssign.New(log, service))
		r.Put("/bookings/{id}/status", bookingStatus.New(log, service))
		r.Put("/bookings/{id}/cancel", bookingCancel.New(log, service))

		// Mechanic tasks
		r.Put("/mechanic-tasks/{id}/status", taskStatus.New(log, service))

		// Availability
		r.Put("/mechanics/{id}/availability", availUpdate.New(log, service))
	})

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := locker.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
