package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/atrium-collab/atrium/internal/api"
	"github.com/atrium-collab/atrium/internal/api/handlers"
	"github.com/atrium-collab/atrium/internal/api/ws"
	"github.com/atrium-collab/atrium/internal/config"
	"github.com/atrium-collab/atrium/internal/cron"
	"github.com/atrium-collab/atrium/internal/repositories"
	"github.com/atrium-collab/atrium/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(1)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Printf("database: %v", err)
		os.Exit(1)
	}

	chatRepo := repositories.NewChatRepository(db)
	userRepo := repositories.NewUserRepository(db)

	hub := ws.NewHub(chatRepo, ws.Config{
		OutboundQueueCap:  cfg.OutboundQueueCap,
		TypingTTL:         cfg.TypingTTL,
		IdleToAway:        cfg.IdleToAway,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatGrace:    cfg.HeartbeatGrace,
		MaxMessageLength:  cfg.MaxMessageLength,
	})

	h := handlers.New(
		services.NewAuthService(userRepo),
		services.NewChatService(chatRepo, services.SettingsDefaults{
			SlowModeInterval: cfg.SlowModeDefault,
			MaxFileSize:      cfg.MaxAttachmentBytes,
		}),
		hub,
	)

	scheduler := cron.StartCronJobs(chatRepo)

	server := api.NewServer(cfg.HTTPAddr, h)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: %v", err)
			os.Exit(1)
		}
	case sig := <-stop:
		log.Printf("Shutting down on %v", sig)
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := hub.Shutdown(ctx); err != nil {
		log.Printf("hub shutdown: %v", err)
	}
}
