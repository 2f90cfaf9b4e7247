package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"dicegame/cmd"
	"dicegame/config"
	"dicegame/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// A missing .env file is fine, the environment may already be set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: dicegame migrate [up|down|status] [steps]")
	}

	databaseURL := config.Get().DatabaseURL
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}

	switch command := os.Args[2]; command {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil {
				return fmt.Errorf("invalid steps %q: %w", os.Args[3], err)
			}
			steps = n
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		version, dirty, applied, err := database.MigrationStatus(databaseURL)
		if err != nil {
			return err
		}
		if !applied {
			log.Info("No migrations have been applied")
			return nil
		}
		log.WithFields(log.Fields{
			"version": version,
			"dirty":   dirty,
		}).Info("Migration status")
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
