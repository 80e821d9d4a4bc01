package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/broker"
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Fatal(err, "Invalid configuration")
	}
	logx.InitGlobalLogger(cfg.IsDevelopment(), "relay")
	logx.Info("Starting chat relay", "port", cfg.Port, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
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

	localizer, err := localization.Default()
	if err != nil {
		logx.Fatal(err, "Failed to load translations")
	}

	// 2. Chat hub and the moderation hand-off
	publisher := chathub.NewStreamPublisher(broker.NewStream(rdb, cfg.ChatStream), cfg.PublishBuffer)
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	go publisher.Run(pubCtx)

	hub := chathub.NewHub(s, publisher)
	if _, err := hub.Relay.RecoverActiveRooms(ctx); err != nil {
		logx.Error(err, "Active room recovery failed")
	}

	// 3. Роути
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, localizer, cfg).Register(r)

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           cors.New(corsOptions).Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "HTTP server failed")
		}
	}()
	logx.Info("Listening", "addr", server.Addr)

	<-ctx.Done()
	logx.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server shutdown failed")
	}

	stopPublisher()
	select {
	case <-publisher.Done():
	case <-shutdownCtx.Done():
		logx.Warn("Publisher did not drain in time")
	}
}
