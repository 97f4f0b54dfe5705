package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
	goredis "github.com/redis/go-redis/v9"
)

// PluginModule provides the cache as a mono plugin.
// Plugins start before and stop after regular modules.
type PluginModule struct {
	container types.ServiceContainer
	storage   *redis.Storage
	service   CacheService
	redisAddr string
	prefix    string
	ttl       time.Duration
	logger    types.Logger
}

var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates a cache plugin. An empty redisAddr disables caching.
func NewPluginModule(redisAddr, prefix string, ttl time.Duration, logger types.Logger) *PluginModule {
	return &PluginModule{
		redisAddr: redisAddr,
		prefix:    prefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *PluginModule) Name() string {
	return "cache"
}

// Start connects to Redis, or falls back to the disabled cache.
func (m *PluginModule) Start(ctx context.Context) error {
	if m.redisAddr == "" {
		m.service = Disabled()
		m.logger.Info("Cache disabled, REDIS_ADDR not set")
		return nil
	}

	// redis.New panics when the server is unreachable, so ping first
	pingClient := goredis.NewClient(&goredis.Options{Addr: m.redisAddr})
	err := pingClient.Ping(ctx).Err()
	_ = pingClient.Close()
	if err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", m.redisAddr, err)
	}

	host, port := parseRedisAddr(m.redisAddr)
	m.storage = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		PoolSize: 50,
	})
	m.service = NewCacheService(m.storage, m.storage.Conn(), m.prefix, m.ttl, m.logger)

	m.logger.Info("Cache plugin started",
		"redis_addr", m.redisAddr,
		"prefix", m.prefix,
		"ttl", m.ttl.String())
	return nil
}

// Stop closes the Redis connection.
func (m *PluginModule) Stop(_ context.Context) error {
	if m.service != nil {
		if err := m.service.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	m.logger.Info("Cache plugin stopped")
	return nil
}

// SetContainer sets the service container for this plugin.
func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

// Container returns the service container for this plugin.
func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the CacheService consumers use. It is nil before Start.
func (m *PluginModule) Port() CacheService {
	return m.service
}

// Health reports whether Redis answers.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "cache not initialized",
		}
	}

	if m.storage == nil {
		return mono.HealthStatus{
			Healthy: true,
			Message: "disabled",
			Details: map[string]any{"enabled": false},
		}
	}

	if err := m.storage.Conn().Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("health check failed: %v", err),
		}
	}

	stats := m.service.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.redisAddr,
			"prefix":     m.prefix,
			"ttl":        m.ttl.String(),
			"hit_rate":   stats.HitRate,
		},
	}
}

// parseRedisAddr splits "host:port", defaulting to 127.0.0.1:6379.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}

	if host == "" {
		host = defaultHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}

	return host, port
}
