package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yourusername/nikah-service/internal/config"
	"github.com/yourusername/nikah-service/internal/handlers"
	"github.com/yourusername/nikah-service/internal/hub"
	"github.com/yourusername/nikah-service/internal/repository"
	"github.com/yourusername/nikah-service/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load ceremony rules: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase
	var fb *config.Firebase
	if cfg.NeedsFirebase() {
		fb, err = config.InitFirebase(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		defer fb.Close()
	}

	store, err := config.OpenStore(cfg, fb)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer store.Close()

	var notifier *services.NotificationService
	if fb != nil {
		notifier = services.NewNotificationService(fb.Messaging)
	} else {
		notifier = services.NewNotificationService(nil)
	}

	roomRepo := repository.NewRoomRepository(store)
	roomService := services.NewRoomService(roomRepo, rules, notifier)
	roomHub := hub.New(roomRepo, roomService, rules)
	defer roomHub.Close()
	roomService.AttachWatcher(roomHub)

	router := handlers.NewRouter(
		handlers.NewRoomHandler(roomService),
		handlers.NewStreamHandler(roomHub, cfg.AllowedOrigins),
		cfg.AllowedOrigins,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		log.Println("🔌 Shutting down")
		roomHub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Start server
	log.Printf("🚀 Server starting on port %s (%s store)", cfg.Port, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
