package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-docs-platform/internal/config"
	"legal-docs-platform/internal/infra/alert"
	pg "legal-docs-platform/internal/infra/db/postgres"
	"legal-docs-platform/internal/infra/gateway"
	"legal-docs-platform/internal/infra/logging"
	"legal-docs-platform/internal/infra/metrics"
	red "legal-docs-platform/internal/infra/redis"
	"legal-docs-platform/internal/infra/sched"
	"legal-docs-platform/internal/infra/web"
	"legal-docs-platform/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (simulated payments, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	pg.StartPoolStatsReporter(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	dedupe := red.NewEventDedupe(redisClient, logger)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	documentRepo := pg.NewDocumentRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	auditRepo := pg.NewAuditLogRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	vita := gateway.NewVitaClient(cfg.Gateway)
	logger.Info().
		Str("base_url", cfg.Gateway.BaseURL).
		Str("login", logging.Redact(cfg.Gateway.Login, cfg.Runtime.Dev)).
		Str("environment", cfg.Gateway.Environment).
		Msg("vita gateway configured")
	alerter, err := alert.NewTelegramAlerter(cfg.Alert, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram alerter init failed")
	}

	// ---- Use cases ----
	auditUC := usecase.NewAuditUseCase(auditRepo, logger)
	userUC := usecase.NewUserUseCase(userRepo, paymentRepo, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, documentRepo, userRepo, txManager, vita, locker, userUC, cfg.Payment.DocumentPriceCOP, logger)
	refundUC := usecase.NewRefundUseCase(documentRepo, paymentRepo, txManager, userUC, auditUC, logger)
	webhookUC := usecase.NewWebhookUseCase(paymentUC, cfg.Gateway.Secret, cfg.Gateway.Login, dedupe, alerter, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	srv := web.NewServer(paymentUC, refundUC, webhookUC, userUC, auditUC, auth, cfg.Storage.EvidenceDir, cfg.Runtime.Dev, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Tier convergence worker ----
	worker := sched.NewTierWorker(cfg.Scheduler.TierRecalcInterval, userUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
