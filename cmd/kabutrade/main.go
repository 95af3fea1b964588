package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kabutrade/internal/config"
	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/gateway/notifier"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
	"kabutrade/internal/runner"
	tradehttp "kabutrade/internal/transport/http"
)

func main() {
	cfgPath := os.Getenv("TS_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading configuration failed: %v", err)
	}

	ring := logger.NewRing(cfg.App.LogBuffer)
	logFile, err := setupLogOutput(cfg.App.LogPath, ring)
	if err != nil {
		log.Fatalf("initializing log output failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)

	store, err := ledger.Open(cfg.App.DBPath)
	if err != nil {
		log.Fatalf("opening ledger failed: %v", err)
	}
	defer store.Close()

	broker, err := kabus.NewClient(cfg.Kabus.BaseURL, cfg.Kabus.APIPassword, cfg.Kabus.OrderPassword)
	if err != nil {
		log.Fatalf("building broker client failed: %v", err)
	}
	if !broker.Configured() {
		logger.Warnf("broker credentials not configured yet; set them via /api/secrets before starting")
	}

	var notify notifier.Notifier = notifier.Null{}
	if cfg.Notify.Enabled && cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		notify = notifier.NewTelegram(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID)
		logger.Infof("telegram notifications enabled")
	}

	rnr := runner.New(broker, store, notify, runner.Options{
		Symbol:          cfg.Trade.Symbol,
		Exchange:        cfg.Trade.Exchange,
		Quantity:        cfg.Trade.Quantity,
		SleepInterval:   secondsToDuration(cfg.Trade.SleepInterval),
		ForceCloseTime:  cfg.Trade.ForceCloseTime,
		MaxDailyLossPct: cfg.Trade.MaxDailyLossPct,
		StopLossPct:     cfg.Trade.StopLossPct,
	})

	srv, err := tradehttp.NewServer(tradehttp.ServerConfig{
		Addr:      cfg.App.ListenAddr,
		Runner:    rnr,
		Store:     store,
		Broker:    broker,
		LogRing:   ring,
		EnvPath:   ".env",
		Watchlist: []string{cfg.Trade.Symbol},
		Exchange:  cfg.Trade.Exchange,
	})
	if err != nil {
		log.Fatalf("building http server failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("kabutrade serving on %s (symbol=%s db=%s)", cfg.App.ListenAddr, cfg.Trade.Symbol, cfg.App.DBPath)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		rnr.RunSnapshots(ctx, secondsToDuration(cfg.Trade.SnapshotInterval))
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		rnr.Stop()
		rnr.CancelSchedule()
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("serving failed: %v", err)
	}
	logger.Infof("shutdown complete")
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// setupLogOutput tees log lines to stdout, the optional log file, and the
// in-memory ring served by /api/logs.
func setupLogOutput(path string, ring *logger.Ring) (*os.File, error) {
	writers := []io.Writer{os.Stdout, ring}
	var file *os.File
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		dir := filepath.Dir(trimmed)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		writers = append(writers, f)
	}
	mw := io.MultiWriter(writers...)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
