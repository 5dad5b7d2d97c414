package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"blog_api/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 2 * time.Second

var ErrNoClient = errors.New("redis client is not configured")

// SetupRedis opens a client for redisCfg and checks it answers PING.
func SetupRedis(ctx context.Context, redisCfg *config.RedisConfig) (*redis.Client, error) {
	dbIndex, err := strconv.Atoi(redisCfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("invalid redis db %q: %w", redisCfg.RedisDB, err)
	}

	addr := net.JoinHostPort(redisCfg.Host, redisCfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: redisCfg.RedisPassword,
		DB:       dbIndex,
	})

	if err := Ping(ctx, rdb); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logrus.WithFields(logrus.Fields{"addr": addr, "db": dbIndex}).Info("Redis connection established")
	return rdb, nil
}

// Ping reports whether the cache is reachable. Used at startup and by /healthz.
func Ping(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return ErrNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
