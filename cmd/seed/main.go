// seed inserts a development account for local testing.
// Idempotent: skips the insert if the dev account (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	accountrepo "accounts-api/internal/account/repository"
	accountservice "accounts-api/internal/account/service"
	"accounts-api/internal/config"
	"accounts-api/internal/db"
	"accounts-api/internal/security"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	if err := cfg.ValidateSecrets(); err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := accountrepo.NewPostgresRepository(conn)
	hasher := security.NewHasher(cfg.ArgonSecret, cfg.ArgonIterations, cfg.ArgonMemorySize)
	accounts, err := accountservice.NewService(repo, hasher)
	if err != nil {
		log.Fatalf("account service: %v", err)
	}

	existing, err := repo.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("lookup dev account: %v", err)
	}
	if existing != nil {
		log.Printf("dev account %s already exists; nothing to do", devEmail)
		return
	}

	account, err := accounts.Create(ctx, devEmail, devPassword)
	if err != nil {
		log.Fatalf("create dev account: %v", err)
	}
	log.Printf("created dev account %s (%s)", account.Email, account.ID)
}
