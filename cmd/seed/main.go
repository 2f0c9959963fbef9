package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/saharansameer/wavytv-backend/config"
	"github.com/saharansameer/wavytv-backend/internal/domain/entity"
	pginfra "github.com/saharansameer/wavytv-backend/internal/infrastructure/postgres"
	"github.com/saharansameer/wavytv-backend/pkg/helpers"
)

// Seeds a couple of demo users, videos, subscriptions, and watch history
// for local development.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	repo := pginfra.NewUserRepository(pool)

	users := []struct {
		fullName, username, email, password string
	}{
		{"Alice Creator", "alice", "alice@example.com", "password123"},
		{"Bob Viewer", "bob", "bob@example.com", "password123"},
	}

	ids := make(map[string]string, len(users))
	for _, s := range users {
		hash, hErr := helpers.HashPassword(s.password)
		if hErr != nil {
			log.Fatalf("hash: %v", hErr)
		}
		u := &entity.User{Username: s.username, Email: s.email, FullName: s.fullName, Password: hash}
		if cErr := repo.Create(u); cErr != nil {
			log.Printf("skip %s: %v", s.username, cErr)
			continue
		}
		ids[s.username] = u.ID
		log.Printf("created user %s (%s)", s.username, u.ID)
	}

	alice, bob := ids["alice"], ids["bob"]
	if alice == "" || bob == "" {
		log.Println("seed users already present; nothing more to do")
		return
	}

	var videoID string
	err = pool.QueryRow(ctx, `
		INSERT INTO videos (owner_id, title, description, video_url, thumbnail_url, duration, views, is_published)
		VALUES ($1, 'First upload', 'Hello from alice', 'https://cdn.example.com/v/first.mp4',
		        'https://cdn.example.com/t/first.jpg', 42.5, 10, true)
		RETURNING id
	`, alice).Scan(&videoID)
	if err != nil {
		log.Fatalf("seed video: %v", err)
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, bob, alice); err != nil {
		log.Fatalf("seed subscription: %v", err)
	}

	if _, err := pool.Exec(ctx, `
		UPDATE users SET watch_history = array_append(watch_history, $1), updated_at = $2 WHERE id = $3
	`, videoID, time.Now(), bob); err != nil {
		log.Fatalf("seed watch history: %v", err)
	}

	log.Println("seed complete")
}
