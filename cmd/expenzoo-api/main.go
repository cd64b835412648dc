package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenzoo/internal/amqp"
	"expenzoo/internal/auth"
	"expenzoo/internal/cache"
	"expenzoo/internal/cli"
	"expenzoo/internal/config"
	apphttp "expenzoo/internal/http"
	"expenzoo/internal/log"
	"expenzoo/internal/middleware/security"
	"expenzoo/internal/services"
	"expenzoo/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateAPI)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Without a broker codes are logged by the auth service.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		notifier = client
		logger.Info("OTP delivery queue ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Warn("AMQP_URL not set, OTP codes will be written to the log")
	}

	lists := cache.NewLRUCache[[]storage.Expense](500, 5*time.Minute)
	caches := cache.NewManager()
	caches.Register(lists)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpire)
	authSvc := services.NewAuthService(repo, tokens, notifier, services.AuthConfig{
		OTPTTL:      cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	})
	expenses := services.NewExpenseService(repo, lists)

	corsCfg := security.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins

	srv := apphttp.NewServer(apphttp.Config{
		Addr:                 ":" + cfg.Port,
		OTPRequestsPerMinute: cfg.OTPRequestsPerMinute,
		CORS:                 corsCfg,
		Logger:               logger,
	}, authSvc, expenses, tokens, repo)

	ctx, stop := cli.SignalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting expenzoo API", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(ctx, 10*time.Minute)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
