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

	"skychat/internal/api"
	"skychat/internal/config"
	"skychat/internal/history"
	"skychat/internal/service/ai"
	"skychat/internal/service/chat"
	"skychat/internal/weather"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	for _, w := range cfg.Warnings() {
		log.Printf("warning: %s", w)
	}

	ctx := context.Background()
	log.Printf("history backend: %q", cfg.History.Backend)
	store, err := history.Open(ctx, cfg)
	if err != nil {
		log.Printf("history store unavailable, running without history: %v", err)
		store = history.Disabled()
	}
	recorder := history.NewRecorder(store)
	if !recorder.Enabled() {
		log.Printf("chat history disabled, turns will not be remembered")
	}
	defer recorder.Close()

	weatherClient := weather.NewClient(cfg.Weather, time.Duration(cfg.BasicConfig.WeatherTimeoutSeconds)*time.Second)
	aiService, err := ai.NewService(ctx, cfg, weatherClient)
	if err != nil {
		log.Fatalf("init ai service: %v", err)
	}
	chatService := chat.NewService(aiService, recorder, chat.Options{
		ContextLimit:     cfg.BasicConfig.HistoryLimit,
		FullHistoryLimit: cfg.BasicConfig.FullHistoryLimit,
	})

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers := api.NewHandler(chatService)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = config.DefaultServerAddress
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
			stop()
		}
	}()

	<-sigCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("server stopped")
}
