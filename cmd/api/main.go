package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaign-billing/internal/audit"
	"campaign-billing/internal/auth"
	"campaign-billing/internal/company"
	"campaign-billing/internal/config"
	"campaign-billing/internal/deposit"
	"campaign-billing/internal/httpapi"
	"campaign-billing/internal/invoice"
	"campaign-billing/internal/pricing"
	"campaign-billing/internal/reporting"
	"campaign-billing/internal/taxauthority"
	"campaign-billing/pkg/logger"
	"campaign-billing/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Tier catalog changes only with pricing policy; seeded in-process until
	// the catalog moves behind the account service.
	pricer := pricing.NewService(pricing.NewSeededMemoryRepo(), pricing.Policy{
		VolumeDiscountThresholdMinor: cfg.Billing.VolumeDiscountThresholdMinor,
		VolumeDiscountRateBP:         cfg.Billing.VolumeDiscountRateBP,
	}, cfg.Billing.Currency)

	// TODO: replace with the account-service client once its API is stable.
	companies := company.NewMemoryProvider()

	gateway := taxauthority.NewHTTPGateway(cfg.TaxAuthority)
	auditSvc := audit.NewService(audit.NewMemoryRepo())
	store := invoice.NewPostgresStore(db)
	locker := invoice.NewRedisLocker(rdb, cfg.Billing.TransitionLeaseTTL)
	billing := invoice.NewService(store, gateway, companies, pricer, locker, invoice.AuditAdapter{Audit: auditSvc})

	deposits := deposit.NewService(db)
	reports := reporting.NewService(reporting.NewStoreRepo(store, deposits))

	h := httpapi.Handlers{
		Auth:    authManager,
		Pricing: pricer,
		Billing: billing,
		Deposit: deposits,
		Reports: reports,
	}

	webhook := taxauthority.WebhookHandler{
		Secret:    cfg.TaxAuthority.WebhookSecret,
		Now:       time.Now,
		Reconcile: resultReconciler(billing),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), webhook, db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// resultReconciler adapts authority result callbacks onto the billing
// reconcile operation. Only transient failures return an error: a non-2xx
// response makes the authority redeliver, so a callback that can never
// apply (already resolved, or a document key we do not know) is acked.
func resultReconciler(billing *invoice.Service) func(*gin.Context, taxauthority.ResultCallback) error {
	return func(c *gin.Context, cb taxauthority.ResultCallback) error {
		id := invoice.RequestIDFromDocumentKey(cb.DocumentKey)
		_, err := billing.Reconcile(c.Request.Context(), cb.WorkspaceID, id)
		if errors.Is(err, invoice.ErrPrecondition) || errors.Is(err, invoice.ErrNotFound) {
			return nil
		}
		return err
	}
}
