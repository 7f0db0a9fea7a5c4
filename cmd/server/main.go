package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockyard/internal/client/crm"
	"stockyard/internal/config"
	cronrunner "stockyard/internal/cron"
	"stockyard/internal/db"
	"stockyard/internal/dblock"
	"stockyard/internal/handler"
	"stockyard/internal/logger"
	"stockyard/internal/notify"
	gormrepository "stockyard/internal/repository/gorm"
	"stockyard/internal/service"
)

func main() {
	cfgPath := os.Getenv("SY_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SY_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	crmHTTP := &http.Client{Timeout: cfg.CRM.Timeout}
	crmClient := crm.NewClient(crmHTTP, cfg.CRM.BaseURL, cfg.CRM.APIToken)
	store := gormrepository.New(dbConn.Gorm)
	locker := dblock.New(dbConn.SQL, logger)
	dispatcher := notify.NewDispatcher(&notify.LogSender{Logger: logger}, logger, cfg.Notify.QueueSize)
	defer dispatcher.Close()

	sellerCache := service.NewSellerCache()
	fullSync := &service.FullSyncService{
		Store:  store,
		CRM:    crmClient,
		Cache:  sellerCache,
		Logger: logger,
		Sync:   cfg.Sync,
		CRMCfg: cfg.CRM,
	}
	deltaSync := &service.DeltaSyncService{
		Store:      store,
		CRM:        crmClient,
		Cache:      sellerCache,
		Full:       fullSync,
		Dispatcher: dispatcher,
		Logger:     logger,
		Sync:       cfg.Sync,
		CRMCfg:     cfg.CRM,
	}
	ingest := &service.WebhookIngestService{
		Store:  store,
		CRM:    crmClient,
		Cache:  sellerCache,
		Logger: logger,
		Sync:   cfg.Sync,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	webhookHandler := &handler.WebhookHandler{
		Ingest: ingest,
		Secret: cfg.Webhook.Secret,
		Logger: logger,
	}
	webhookHandler.Register(engine)
	syncHandler := &handler.SyncHandler{
		Repo:   store,
		Full:   fullSync,
		Delta:  deltaSync,
		Locker: locker,
		Logger: logger,
	}
	syncHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		err = cronRunner.Schedule(service.JobFullSync, cfg.Cron.FullSync, func(ctx context.Context) {
			_, err := dblock.RunExclusive(ctx, locker, logger, service.JobFullSync, func(ctx context.Context) error {
				stats, err := fullSync.Run(ctx)
				if err != nil {
					return err
				}
				logger.Info("cron full sync ok",
					zap.Int("synced", stats.Synced),
					zap.Int("skipped", stats.Skipped),
					zap.Int("errors", stats.Errors),
					zap.Int64("removed", stats.Removed),
				)
				return nil
			})
			if err != nil {
				logger.Warn("cron full sync failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register full sync failed", zap.Error(err))
		}

		err = cronRunner.Schedule(service.JobDeltaSync, cfg.Cron.DeltaSync, func(ctx context.Context) {
			_, err := dblock.RunExclusive(ctx, locker, logger, service.JobDeltaSync, func(ctx context.Context) error {
				stats, err := deltaSync.Run(ctx)
				if err != nil {
					return err
				}
				logger.Info("cron delta sync ok",
					zap.String("mode", stats.Mode),
					zap.Int("synced", stats.Synced),
					zap.Int("skipped", stats.Skipped),
					zap.Int("errors", stats.Errors),
					zap.Int64("removed", stats.Removed),
				)
				return nil
			})
			if err != nil {
				logger.Warn("cron delta sync failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register delta sync failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
