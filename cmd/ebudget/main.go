package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/app"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/budget"
	budgethttp "github.com/ebudget/ebudget/internal/budget/http"
	"github.com/ebudget/ebudget/internal/budgetlock"
	budgetlockhttp "github.com/ebudget/ebudget/internal/budgetlock/http"
	"github.com/ebudget/ebudget/internal/observability"
	"github.com/ebudget/ebudget/internal/platform/cache"
	"github.com/ebudget/ebudget/internal/platform/httpx"
	"github.com/ebudget/ebudget/internal/ppe"
	ppehttp "github.com/ebudget/ebudget/internal/ppe/http"
	"github.com/ebudget/ebudget/internal/report"
	reporthttp "github.com/ebudget/ebudget/internal/report/http"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/upload"
	uploadhttp "github.com/ebudget/ebudget/internal/upload/http"
	"github.com/ebudget/ebudget/internal/view"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics(version)
	sessionManager := shared.NewSessionManager(redisClient, "ebudget_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	gateway := api.NewClient(api.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		Logger:     logger,
		Registerer: metrics.Registerer(),
	})

	trees, err := aggregate.NewCache(cfg.AggregateCacheSize)
	if err != nil {
		logger.Error("create aggregate cache", slog.Any("error", err))
		os.Exit(1)
	}

	budgetDrafts := budget.NewDraftRepository(redisClient, cfg.SessionTTL)
	ppeDrafts := ppe.NewDraftRepository(redisClient, cfg.SessionTTL)
	previews := upload.NewPreviewStore(redisClient, cfg.UploadPreviewTTL)

	authService := auth.NewService(gateway, cfg.AuthRecheck)
	gate := auth.NewGate(authService, logger, cfg.SuperCostCenter, budgetDrafts, ppeDrafts, previews)
	authHandler := auth.NewHandler(logger, authService, gate, templates, sessionManager, csrfManager)

	budgetService := budget.NewService(gateway, budgetDrafts, cfg.BudgetYear)
	lockService := budgetlock.NewService(gateway, budgetlock.NewCache(redisClient, cfg.LockCacheTTL), logger, cfg.BudgetYear)
	reportService := report.NewService(gateway, trees, cfg.BudgetYear)
	ppeService := ppe.NewService(gateway, ppeDrafts, cfg.BudgetYear)
	uploadService := upload.NewService(gateway, previews)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Gate:           gate,
		Metrics:        metrics,
		HealthChecks:   []httpx.Check{{Name: "redis", Probe: cache.Check(redisClient)}},
		AuthHandler:    authHandler,
		BudgetHandler:  budgethttp.NewHandler(logger, budgetService, lockService, gate, templates, csrfManager),
		LockHandler:    budgetlockhttp.NewHandler(logger, lockService, gate, templates, csrfManager),
		ReportHandler:  reporthttp.NewHandler(logger, reportService, gate, templates, csrfManager),
		PPEHandler:     ppehttp.NewHandler(logger, ppeService, gate, templates, csrfManager),
		UploadHandler:  uploadhttp.NewHandler(logger, uploadService, gate, templates, csrfManager),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("api", cfg.APIBaseURL),
			slog.Int("year", cfg.BudgetYear),
			slog.String("version", version),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
