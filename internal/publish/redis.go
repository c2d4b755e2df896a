// Package publish pushes the unified artifact to Redis so downstream
// consumers can read the latest cycle without touching the filesystem.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/models"
)

// Config holds Redis publication settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Key receives the full artifact JSON on every cycle.
	Key string
	// Channel receives a PUBLISH notification after the key is set.
	Channel string
}

// Publisher writes the unified artifact to Redis.
type Publisher struct {
	client *redis.Client
	cfg    Config
}

// NewPublisher creates a publisher and verifies the connection.
func NewPublisher(cfg Config) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Publish stores the artifact under the configured key and notifies the
// channel. The key has no TTL; each cycle overwrites the previous value.
func (p *Publisher) Publish(ctx context.Context, artifact *models.UnifiedArtifact) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := p.client.Set(ctx, p.cfg.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set artifact key: %w", err)
	}

	if p.cfg.Channel != "" {
		if err := p.client.Publish(ctx, p.cfg.Channel, "updated").Err(); err != nil {
			return fmt.Errorf("failed to publish update notification: %w", err)
		}
	}

	log.Debug().
		Str("key", p.cfg.Key).
		Int("bytes", len(data)).
		Msg("Artifact published to Redis")

	return nil
}
