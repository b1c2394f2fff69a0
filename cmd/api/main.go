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

	"leadtracker/internal/audit"
	"leadtracker/internal/auth"
	"leadtracker/internal/config"
	"leadtracker/internal/httpapi"
	"leadtracker/internal/leads"
	"leadtracker/internal/metrics"
	"leadtracker/internal/notify"
	"leadtracker/internal/reporting"
	"leadtracker/internal/session"
	"leadtracker/internal/storage"
	"leadtracker/pkg/logger"
	"leadtracker/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("env file load failed", "err", err)
		os.Exit(1)
	}
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

	db, err := utils.OpenPostgres(rootCtx, utils.PostgresDriver, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := leads.NewPostgresStore(db)
	auditRepo := audit.NewPostgresRepo(db)
	if !cfg.IsProduction() {
		if err := store.EnsureSchema(rootCtx); err != nil {
			log.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		if err := auditRepo.EnsureSchema(rootCtx); err != nil {
			log.Error("audit schema init failed", "err", err)
			os.Exit(1)
		}
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	blobs := storage.NewDisk(cfg.Storage.Dir, cfg.PublicBase())

	sessions := session.NewRegistry(session.Deps{
		Store:          store,
		Blobs:          blobs,
		Drafts:         leads.NewRedisDraftCache(rdb, cfg.Redis.DraftTTL),
		Guard:          leads.NewRedisPromotionGuard(rdb, cfg.Redis.ClaimTTL, cfg.Redis.DraftTTL),
		Observer:       metrics.StoreObserver{},
		Notifiers:      []notify.Notifier{notify.LogNotifier{}, metrics.NoticeCounter{}},
		ScopeByUser:    cfg.Leads.ScopeByUser,
		DefaultUserID:  cfg.Leads.DefaultUserID,
		Bucket:         cfg.Storage.Bucket,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		OnOpen: func(scope string) {
			metrics.SessionOpened()
			log.Info("lead session opened", "scope", scope)
		},
	})

	h := httpapi.Handlers{
		Auth:           authManager,
		Sessions:       sessions,
		Reports:        reporting.NewService(nil),
		Audit:          audit.NewService(auditRepo),
		AllowDevLogin:  !cfg.IsProduction(),
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())
	r.Use(audit.ClientIPMiddleware())

	registerPublicRoutes(r, db, cfg.Storage.PublicPath, blobs.BaseDir())
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "scope_by_user", cfg.Leads.ScopeByUser)
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
}
