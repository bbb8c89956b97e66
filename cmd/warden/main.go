package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/analytics"
	"warden/internal/bot"
	"warden/internal/config"
	"warden/internal/leveling"
	"warden/internal/moderation"
	"warden/internal/modules/audit"
	"warden/internal/resolver"
	"warden/internal/roblox"
	"warden/internal/storage"
	"warden/internal/verification"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	if cfg.AuditRetentionDays > 0 {
		if err := store.CleanupAuditLogs(context.Background(), cfg.AuditRetentionDays); err != nil {
			logger.Warn("audit cleanup failed", zap.Error(err))
		}
	}

	auditLogger := audit.NewLogger(store, logger)
	ledger := moderation.NewLedger(store)
	levelEngine := leveling.NewEngine(store, cfg.LevelRoles)
	robloxClient := roblox.NewClient(time.Duration(cfg.Roblox.TimeoutSeconds) * time.Second)
	res := resolver.New(ledger, store, robloxClient)
	pending := verification.NewPendingStore(time.Duration(cfg.Verification.CodeTTLMinutes) * time.Minute)
	verifySvc := verification.NewService(store, robloxClient, pending)
	analyticsSvc := analytics.New(store)

	botSvc, err := bot.New(cfg, logger, store, ledger, levelEngine, res, robloxClient, verifySvc, auditLogger, analyticsSvc)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
