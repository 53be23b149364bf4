// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/t1ww/code-battle/internal/models"
)

// DefaultResultQueue is the Redis list the data service drains for finished
// match records.
const DefaultResultQueue = "codebattle_results"

// Publisher pushes finished-match records onto a Redis list. The external
// data service owns everything from there: ratings, score history, profiles.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// ConnectPublisher dials Redis and verifies the link with a ping.
func ConnectPublisher(addr string, db int, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultResultQueue
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb, queue: queue}, nil
}

// PublishMatchResult serializes the record and RPUSHes it onto the queue.
// This is a quick network send, not a blocking handoff.
func (p *Publisher) PublishMatchResult(ctx context.Context, result models.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal match result: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", p.queue, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
