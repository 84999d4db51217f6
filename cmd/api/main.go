package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/httpapi"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/auth/jwtverifier"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/config"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/logger"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/runtime"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log config: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	// Auth configuration:
	// - Production: HS256 bearer tokens signed with auth.jwt_secret
	// - Local dev: auth.mode=dev trusts X-Debug-Subject
	var authMW func(http.Handler) http.Handler
	switch cfg.Auth.Mode {
	case "dev":
		log.Warn("dev auth enabled; X-Debug-Subject is trusted")
		authMW = httpapi.NewDevAuthMiddleware(cfg.Auth.DevSubject)
	default:
		verifier := jwtverifier.New(jwtverifier.Config{
			Secret:    []byte(cfg.Auth.JWTSecret),
			Issuer:    cfg.Auth.JWTIssuer,
			Audience:  cfg.Auth.JWTAud,
			ClockSkew: cfg.Auth.ClockSkew,
		})
		authMW = httpapi.NewAuthMiddleware(verifier)
	}

	api := httpapi.NewServer(app.Applicants, app.Lifecycle, app.Batch, app.Photos, log.Named("http"))
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Metrics:        promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		PhotoDir:       app.PhotoDir,
		Idempotency:    app.Idempotency,
		Logger:         log.Named("access"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
