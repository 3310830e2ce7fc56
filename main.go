package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"fundingwatch/config"
	"fundingwatch/internal/exchange"
	"fundingwatch/internal/metrics"
	"fundingwatch/internal/monitor"
	"fundingwatch/internal/notify"
	"fundingwatch/internal/state"
	"fundingwatch/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"path": path}).Error("Failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 1
	}

	runID := uuid.NewString()
	env := config.AppEnvironment()
	mainLog := log.WithComponent("main").WithFields(logger.Fields{"run_id": runID})
	log.WithEnv("APP_ENV", "LOG_LEVEL").WithComponent("main").WithFields(logger.Fields{"run_id": runID}).Debug("process environment")
	mainLog.WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"env":     env,
		"targets": len(cfg.Targets),
	}).Info("starting fundingwatch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := state.Open(ctx, cfg.State)
	if err != nil {
		mainLog.WithError(err).Error("failed to open state store")
		return 1
	}

	notifier := notify.NewTelegram(cfg.Telegram)
	if !cfg.Telegram.Configured() {
		entry := mainLog.WithFields(logger.Fields{"env": env})
		if config.IsProductionLike(env) {
			entry.Warn("TG_BOT_TOKEN or TG_CHAT_ID not set, alerts will only be logged")
		} else {
			entry.Info("telegram not configured, alerts will only be logged")
		}
	}

	recorder := metrics.New(cfg.Metrics, runID)
	if cfg.Metrics.CloudWatch.Enabled {
		recorder.WithCloudWatch(metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch, cfg.App.Name))
	}

	mon := monitor.New(
		monitor.TargetsFromConfig(cfg.Targets),
		exchange.NewRegistry(cfg.Exchanges),
		store,
		notifier,
		monitor.Options{
			NotifyFetchErrors: cfg.Alerts.NotifyFetchErrors,
			Location:          cfg.Alerts.Location(),
		},
	)

	start := time.Now()
	res, err := mon.Run(ctx)
	elapsed := time.Since(start)

	recorder.ObserveRun(res, elapsed)
	recorder.Flush(context.WithoutCancel(ctx))
	logger.LogReport(log)

	if err != nil {
		mainLog.WithError(err).Error("run failed")
		return 1
	}
	mainLog.WithFields(logger.Fields{"duration_ms": elapsed.Milliseconds()}).Info("fundingwatch finished")
	return 0
}
