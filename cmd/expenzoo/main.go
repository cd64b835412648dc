// Command expenzoo manages the local construction expense ledger from the
// terminal: records, budget, categories, summary, backups and exports.
package main

import (
	"fmt"
	"os"
	"time"

	"expenzoo/internal/backend"
	"expenzoo/internal/cli"
	"expenzoo/internal/config"
	"expenzoo/internal/ledger"
	"expenzoo/internal/log"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cli.LoadEnvFile()

	// Command output owns stdout; logs go to stderr.
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(envOr("LOG_LEVEL", "warn"))
	logCfg.Component = log.ComponentLedger
	logCfg.Output = os.Stderr
	logger := log.New(logCfg)
	log.SetDefault(logger)

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext()
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return 1
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bcfg.Type)
		return 1
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	store, err := ledger.Open(ctx, res.KV, ledger.Options{})
	if err != nil {
		logger.Error("Failed to load ledger", log.FieldError, err)
		return 1
	}

	a := &app{
		store:      store,
		out:        os.Stdout,
		now:        time.Now,
		dateLayout: cfg.CSVDateLayout,
		sheets:     pushToSheets,
	}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "expenzoo:", err)
		return exitCode(err)
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
