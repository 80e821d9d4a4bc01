package main

import (
	"context"
	"os/signal"
	"syscall"

	"anonchat/backend/internal/blocker"
	"anonchat/backend/internal/broker"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"
	"anonchat/backend/internal/telegram"
)

const role = "blocker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Fatal(err, "Invalid configuration")
	}
	logx.InitGlobalLogger(cfg.IsDevelopment(), role)
	logx.Info("Blocker starting", "threshold", cfg.BlockThreshold, "block_duration", cfg.BlockDuration().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenPostgres(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open PostgreSQL")
	}
	rdb, err := storage.OpenRedis(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open Redis")
	}
	defer rdb.Close()
	s := storage.NewStorageService(db, rdb)

	ledger := blocker.NewLedger(s, s, cfg.BlockThreshold, cfg.BlockDuration())

	if cfg.TelegramBotToken != "" && cfg.TelegramAlertChatID != 0 {
		alerter, err := telegram.Connect(cfg.TelegramBotToken, cfg.TelegramAlertChatID)
		if err != nil {
			// Alerts are optional; blocking works without them.
			logx.Error(err, "Telegram alerts disabled")
		} else {
			ledger.WithAlerter(alerter)
		}
	}

	err = broker.NewStream(rdb, cfg.StrikeStream).Consume(ctx, broker.ConsumerOptions{
		Group:        cfg.Group(role),
		Consumer:     cfg.Consumer(role),
		ClaimMinIdle: cfg.ClaimMinIdle,
	}, blocker.NewWorker(ledger).Handle)
	if err != nil {
		logx.Fatal(err, "Blocker stopped")
	}
}
