package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joern42/hostpanel/internal/config"
	"github.com/joern42/hostpanel/internal/store/postgres"
)

// Removes expired session rows. Meant for cron on installs that do not
// keep the panel process running continuously.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	repo := postgres.NewSessionRepository(db)
	if err := repo.DeleteExpired(ctx); err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	fmt.Println("Expired sessions removed.")
}
