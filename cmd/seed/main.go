// Command seed creates a user account so the auth endpoints can be exercised.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/Skotchmaster/session_auth/internal/config"
	"github.com/Skotchmaster/session_auth/internal/db"
	"github.com/Skotchmaster/session_auth/internal/hash"
	"github.com/Skotchmaster/session_auth/internal/models"
	"github.com/Skotchmaster/session_auth/internal/repo"
)

func main() {
	email := flag.String("email", "", "user email (required)")
	password := flag.String("password", "", "user password (required)")
	name := flag.String("name", "", "display name")
	role := flag.String("role", models.RoleUser, "USER or ADMIN")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("-email and -password are required")
	}
	r := strings.ToUpper(*role)
	if r != models.RoleUser && r != models.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}

	cfg := config.FromEnv()
	if cfg.DatabaseURL == "" {
		log.Fatal("missing required env DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	hasher, err := hash.NewHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("password hasher: %v", err)
	}
	pw, err := hasher.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	u := &models.User{Email: *email, PasswordHash: pw, Role: r, Name: *name}
	err = repo.New(gdb).CreateUserIfNotExists(ctx, u)
	switch {
	case errors.Is(err, repo.ErrUserAlreadyExist):
		log.Printf("user %s already exists (id=%d), left unchanged", *email, u.ID)
	case err != nil:
		log.Fatalf("create user: %v", err)
	default:
		log.Printf("created user %s (id=%d, role=%s)", *email, u.ID, r)
	}
}
