package main

import (
	"context"
	"errors"
	"log"

	"github.com/joho/godotenv"

	"mindbridge/internal/config"
	"mindbridge/internal/db"
	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/repository"
	"mindbridge/internal/service"
)

// seed creates the first administrator so that counselors can be provisioned
// through the API. Running it again is a no-op.
func main() {
	log.Println("Starting seed script...")
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.SeedAdminPass == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	users := service.NewUserService(repository.NewUserRepository(gormDB), nil, nil)
	user, recoveryKey, err := users.CreateUser(context.Background(), cfg.SeedAdminUser, cfg.SeedAdminPass, model.RoleAdmin)
	switch {
	case errors.Is(err, apperrors.ErrUsernameTaken):
		log.Printf("User %q already exists, nothing to do", cfg.SeedAdminUser)
	case err != nil:
		log.Fatalf("Failed to create admin: %v", err)
	default:
		log.Printf("Created admin %q (%s)", user.Username, user.ID)
		log.Printf("Recovery key (shown once): %s", recoveryKey)
	}
}
