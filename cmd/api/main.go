package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"emis/internal/auth"
	"emis/internal/config"
	"emis/internal/handler"
	"emis/internal/httpmiddleware"
	"emis/internal/identity"
	"emis/internal/mail"
	"emis/internal/queue"
	"emis/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		BoltPath:    cfg.BoltPath,
		Migrate:     cfg.MigrateOnStart,
	})
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer db.Close()

	checks := map[string]handler.HealthCheck{"store": db.Healthy}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = redisClient.Healthy
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	} else {
		q = queue.NewInMemory(64)
	}

	sender, err := recoverySender(ctx, cfg, q, logger)
	if err != nil {
		return err
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	codec, err := auth.NewCodec(cfg.JWTSecret, time.Now)
	if err != nil {
		return err
	}
	stores := identity.StoresFrom(db)

	h := handler.New(codec,
		identity.NewDispatcher(stores, hasher, codec, logger),
		identity.NewRecovery(stores.Admins, hasher, sender, cfg.SenderEmail, identity.WithRecoveryLogger(logger)),
		identity.NewProvisioner(stores, hasher),
		logger,
		checks,
	)

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	go sweepLimiter(ctx, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(handler.RouterOptions{CORSOrigins: cfg.CORSOrigins, Limiter: limiter}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "queue", cfg.QueueBackend, "mail", cfg.MailTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "error", err)
	}
	cancel()

	logger.Info("server exited")
	return nil
}

// recoverySender picks how recovery emails leave the process. With the
// queue transport on an in-memory queue, delivery runs in this process.
func recoverySender(ctx context.Context, cfg config.App, q queue.Queue, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.MailTransport {
	case "smtp":
		return smtpSender(cfg)
	case "queue":
		if _, inProcess := q.(*queue.InMemory); inProcess {
			relay, err := smtpSender(cfg)
			if err != nil {
				return nil, err
			}
			go func() {
				if err := mail.Deliver(ctx, q, relay, logger); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("mail delivery stopped", "error", err)
				}
			}()
		}
		return mail.NewQueueSender(q), nil
	default:
		return mail.NewLogSender(logger), nil
	}
}

func smtpSender(cfg config.App) (*mail.SMTPSender, error) {
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
}

func sweepLimiter(ctx context.Context, l *httpmiddleware.SimpleTokenBucket) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.Sweep(10 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}
