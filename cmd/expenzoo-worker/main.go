package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"expenzoo/internal/amqp"
	"expenzoo/internal/cli"
	"expenzoo/internal/config"
	"expenzoo/internal/log"
	"expenzoo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting expenzoo-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	var mailer worker.Mailer = worker.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = worker.NewSMTPMailer(worker.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		logger.Info("Delivering OTPs by mail", "smtp_host", cfg.SMTPHost)
	} else {
		logger.Warn("SMTP_HOST not set, OTP codes will be written to the log")
	}
	w := worker.NewOTPWorker(mailer, repo)

	// Clear whatever expired while the worker was down.
	if _, err := w.Purge(context.Background()); err != nil {
		logger.Error("Startup purge failed", log.FieldError, err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := client.ConsumeOTP(ctx, w.HandleDelivery)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return w.RunPurgeSchedule(ctx, cfg.OTPPurgeSchedule)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
