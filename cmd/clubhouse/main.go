package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/server"
)

func main() {
	fmt.Println("=====================================")
	fmt.Println("  Clubhouse - Club Management Server ")
	fmt.Println("=====================================")

	configPath := os.Getenv("CLUBHOUSE_CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./clubhouse.yaml"); err == nil {
			configPath = "./clubhouse.yaml"
		}
	}

	if err := config.Load(configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if configPath != "" {
		log.Printf("✅ Configuration loaded from: %s", configPath)
		stopWatch, err := config.Watch(configPath)
		if err != nil {
			log.Printf("⚠️  Configuration watch unavailable: %v", err)
		} else {
			defer stopWatch()
		}
	} else {
		log.Printf("✅ Using default configuration")
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	router := server.SetupRouter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("\nShutting down gracefully...")
		cancel()
	}()

	server.StartBackground(ctx)

	if err := server.Run(ctx, router); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}
