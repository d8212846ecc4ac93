package test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisDB returns a client on a randomly chosen logical DB so test
// packages sharing the instance do not trample each other's keys.
func NewRedisDB() (*redis.Client, error) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}

	// nolint:gosec // DB selection does not need crypto/rand
	random := rand.New(rand.NewSource(time.Now().UnixNano()))
	redisURL := fmt.Sprintf("redis://:swordfish@%s:6379/%d", host, random.Intn(16))

	redisConfig, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	db := redis.NewClient(redisConfig)
	if _, err = db.Ping(ctx).Result(); err != nil {
		db.Close()

		return nil, err
	}

	return db, nil
}
