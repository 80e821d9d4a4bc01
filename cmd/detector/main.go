package main

import (
	"context"
	"os/signal"
	"syscall"

	"anonchat/backend/internal/broker"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/detector"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"
)

const role = "detector"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Fatal(err, "Invalid configuration")
	}
	logx.InitGlobalLogger(cfg.IsDevelopment(), role)

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

	if cfg.SeedRules {
		n, err := s.SeedRules(ctx, detector.DefaultRules())
		if err != nil {
			logx.Fatal(err, "Failed to seed rules")
		}
		if n > 0 {
			logx.Info("Seeded default rules", "count", n)
		}
	}

	worker := detector.NewWorker(
		detector.New(s, cfg.RulesCacheTTL),
		broker.NewStream(rdb, cfg.StrikeStream),
	)

	err = broker.NewStream(rdb, cfg.ChatStream).Consume(ctx, broker.ConsumerOptions{
		Group:        cfg.Group(role),
		Consumer:     cfg.Consumer(role),
		ClaimMinIdle: cfg.ClaimMinIdle,
	}, worker.Handle)
	if err != nil {
		logx.Fatal(err, "Detector stopped")
	}
}
