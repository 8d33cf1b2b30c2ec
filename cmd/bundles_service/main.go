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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bingwasokoni/bundles/internal/bundles/adapters/paymentgateway"
	"github.com/bingwasokoni/bundles/internal/bundles/app"
	"github.com/bingwasokoni/bundles/internal/bundles/repository/postgres"
	transporthttp "github.com/bingwasokoni/bundles/internal/bundles/transport/http"
	"github.com/bingwasokoni/bundles/internal/platform/config"
	"github.com/bingwasokoni/bundles/internal/platform/database"
	"github.com/bingwasokoni/bundles/internal/platform/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).With("service", "bundles_service")
	log.Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := postgres.EnsureSchema(ctx, dbPool, log); err != nil {
		log.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	txnRepo := postgres.NewPgTransactionRepository(dbPool, log)
	bundleRepo := postgres.NewPgBundleRepository(dbPool, log)
	auditRepo := postgres.NewPgAuditRepository(dbPool, log)

	var gateway paymentgateway.Gateway
	switch cfg.GatewayMode {
	case "mock":
		log.Warn("payment gateway running in mock mode, no real money moves")
		gateway = paymentgateway.NewMockGateway(log)
	default:
		gateway = paymentgateway.NewLipanaGateway(log,
			cfg.LipanaBaseURL, cfg.LipanaAPIKey, cfg.BusinessShortcode, cfg.LipanaCallbackURL,
			time.Duration(cfg.GatewayTimeoutSeconds)*time.Second, nil)
	}

	paymentSvc := app.NewPaymentService(txnRepo, bundleRepo, auditRepo, gateway, cfg.BusinessName, log)
	callbackSvc := app.NewCallbackService(txnRepo, auditRepo, log)

	paymentHandler := transporthttp.NewPaymentHandler(paymentSvc, log)
	callbackHandler := transporthttp.NewCallbackHandler(callbackSvc, log)
	router := transporthttp.NewRouter(log, paymentHandler, callbackHandler)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error("api server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}
