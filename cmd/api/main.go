package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"steward/api/internal/aiedit"
	"steward/api/internal/app"
	"steward/api/internal/chat"
	"steward/api/internal/config"
	"steward/api/internal/llm"
	"steward/api/internal/project"
	"steward/api/internal/search"
	"steward/api/internal/sop"
	"steward/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	model, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("llm configuration invalid: %v", err)
	}

	var templateCache *sop.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		templateCache, err = sop.NewCache(cfg.RedisURL, cfg.TemplateCacheTTL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, template caching disabled: %v", err)
			templateCache = nil
		} else {
			defer templateCache.Close()
		}
	}

	fallback := search.NewPgFallback(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, fallback)

	templates := sop.NewService(dataStore, templateCache)
	projects := project.NewService(dataStore, dataStore)
	chats := chat.NewService(dataStore, model)
	edits := aiedit.NewService(dataStore, templates, model)

	service := app.NewService(dataStore, projects, templates, chats, edits, searchService)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Steward API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
