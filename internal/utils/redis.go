package utils

import (
	"strconv"

	"github.com/redis/go-redis/v9"

	"postcode-api/internal/logger"
)

// OpenRedis returns a client for host:port, or nil when host is empty.
// The connection is lazy; callers Ping to check it.
func OpenRedis(host string, port int, pass string, db int) *redis.Client {
	if host == "" {
		return nil
	}
	if db < 0 {
		db = 0
	}
	addr := host + ":" + strconv.Itoa(port)
	logger.L().Debug("redis_config", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}
