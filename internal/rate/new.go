package rate

import (
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// New construye el limiter de driver ("memory" o "redis"). El driver redis
// requiere client.
func New(driver string, client *rdb.Client, prefix string, max int, window time.Duration) (Limiter, error) {
	if max <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate: limit and window must be positive")
	}
	switch driver {
	case "", "memory":
		return NewMemoryLimiter(max, window), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("rate: redis driver without client")
		}
		return NewRedisLimiter(client, prefix, max, window), nil
	default:
		return nil, fmt.Errorf("rate: unknown driver %q", driver)
	}
}
