package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitagent-backend/internal/config"
	"gitagent-backend/internal/database"
	"gitagent-backend/internal/handlers"
	"gitagent-backend/internal/router"
	"gitagent-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting GitHub Agent Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize GitHub Response Cache ────
	cache := services.NewNoopCache()
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		cache = services.NewRedisCache(redisClient)
		log.Println("✓ Redis connected (GitHub response cache)")
	} else {
		log.Println("✓ Running without Redis (GitHub responses not cached)")
	}

	// ──── Step 3: Initialize Services ────
	githubService := services.NewGitHubService(cfg.GitHubAPIURL, cache)
	agentService := services.NewAgentService(
		githubService,
		cfg.GroqAPIKey,
		cfg.GroqModel,
		cfg.GroqBaseURL,
		cfg.GroqConcurrentReqs,
	)
	log.Printf("✓ GitHub agent initialized (model: %s)", cfg.GroqModel)

	// ──── Step 4: Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(agentService)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(chatHandler, cfg.FrontendURL, cfg.ChatRateLimit)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // agent exchanges can run several tool rounds
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ GitHub Agent Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  UI:  http://localhost:%s/", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/chat", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
