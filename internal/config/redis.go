package config

// This file defines the Redis client constructor.  Redis backs the
// idempotency guard and the init-charge cache, both of which the
// notification engine treats as hard dependencies: a missing cache would
// disable duplicate-delivery protection, so unlike optional middleware
// caches the constructor returns an error instead of degrading to nil.

import (
    "context"
    "os"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client.  The address is taken from
// the argument when non-empty, otherwise from REDIS_ADDR, otherwise
// localhost:6379.  REDIS_PASSWORD and REDIS_DB are honoured when set.
// The connection is verified with a short ping before the client is
// returned.
func NewRedisClient(addr string) (*redis.Client, error) {
    if addr == "" {
        addr = os.Getenv("REDIS_ADDR")
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    dbNum := 0
    if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
        if n, err := strconv.Atoi(dbStr); err == nil {
            dbNum = n
        }
    }
    client := redis.NewClient(&redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       dbNum,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, err
    }
    return client, nil
}
