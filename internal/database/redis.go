package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis configures the Redis client backing the leaderboard cache.
// An empty URL is allowed and yields a nil client; caching then degrades to
// hitting the database on every read.
func ConnectRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}
