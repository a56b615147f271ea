package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/config"
	"github.com/iliyamo/superta-auth/internal/database"
	"github.com/iliyamo/superta-auth/internal/handler"
	"github.com/iliyamo/superta-auth/internal/identity"
	"github.com/iliyamo/superta-auth/internal/logger"
	"github.com/iliyamo/superta-auth/internal/mailer"
	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/queue"
	"github.com/iliyamo/superta-auth/internal/repository"
	"github.com/iliyamo/superta-auth/internal/router"
	"github.com/iliyamo/superta-auth/internal/service"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	client, db, err := database.Open(startCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		cancel()
		zl.Fatal("mongo connect failed", zap.Error(err))
	}
	if err := database.EnsureIndexes(startCtx, db); err != nil {
		zl.Warn("mongo index bootstrap failed", zap.Error(err))
	}
	cancel()
	zl.Info("mongo connected", zap.String("db", cfg.MongoDB))

	idp := identity.Open(ctx, cfg.FirebaseCredentials, zl)

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		zl.Warn("redis unavailable; rate limiting and response cache disabled", zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	reg := metrics.NewRegistry()

	var pub service.Publisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		pub = service.NewRabbitPublisher(cfg.RabbitURL, zl)
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, "logs", zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	svc := service.New(service.Deps{
		Profiles:  repository.NewProfileRepo(db),
		Tokens:    repository.NewVerificationRepo(db),
		Audit:     repository.NewAuditRepo(db),
		EmailLog:  repository.NewEmailLogRepo(db),
		Identity:  idp,
		Publisher: pub,
		Sender: mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
		Metrics:         reg,
		Log:             zl,
		WebsiteURL:      cfg.WebsiteURL,
		SenderName:      cfg.SMTPSender,
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.ResetTTL,
	})
	if cfg.SMTPHost == "" {
		zl.Warn("SMTP_OUTGOING_SERVER not set; verification and reset emails will fail")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger(zl))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.Metrics(reg))

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, zl)
	lim := router.Limits{
		General:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl),
		Sensitive: middleware.NewTokenBucket(config.LoadSensitiveRateLimitConfig(), rdb, zl),
	}

	router.RegisterRoutes(e, reg)
	api := router.RegisterAPI(e,
		handler.NewUserHandler(svc.Accounts, cache, zl, cfg.RequestTimeout),
		handler.NewTokenHandler(svc.Tokens, cache, zl, cfg.RequestTimeout),
		cache, lim)
	if cfg.AdminEnabled() {
		router.RegisterAdmin(api, handler.NewAdminHandler(cfg, svc.Accounts, cache, zl), lim, cfg.DebugEndpoints)
	} else {
		zl.Info("admin endpoints disabled; set JWT_SECRET, ADMIN_EMAIL and ADMIN_PASSWORD_HASH to enable")
	}

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		zl.Error("mongo disconnect", zap.Error(err))
	}
}
