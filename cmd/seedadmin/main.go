// Command seedadmin creates the administrator named by ADMIN_EMAIL,
// ADMIN_PASSWORD and ADMIN_NAME in the PostgreSQL backend and prints its uid.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cinepasse-backoffice/internal/auth"
	"cinepasse-backoffice/internal/config"
	"cinepasse-backoffice/internal/database"
	"cinepasse-backoffice/internal/repository"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Backend != config.BackendPostgres {
		slog.Error("seedadmin only applies to the postgres backend", "backend", cfg.Backend)
		os.Exit(1)
	}
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		slog.Error("ADMIN_EMAIL and ADMIN_PASSWORD are required")
		os.Exit(1)
	}

	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := repository.NewStore(db)
	creds := repository.NewCredentialRepository(db)

	uid, err := auth.SeedAdmin(context.Background(), creds, store.Users(), cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
	if err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("ADMIN_UID=" + uid)
}
