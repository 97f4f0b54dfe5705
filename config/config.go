// Package config loads the todo API server settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server holds every setting the todo API server reads at startup.
type Server struct {
	HTTPPort        int
	Backend         string
	DBPath          string
	DBDebug         bool
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	KVStorageDir    string
	RedisAddr       string
	CachePrefix     string
	CacheTTL        time.Duration
	AllowedOrigins  string
	LogLevel        string
	AccessLog       bool
	ShutdownTimeout time.Duration
}

// Load reads the server configuration from environment variables.
// Malformed numeric, boolean and duration values fall back to their defaults.
func Load() Server {
	return Server{
		HTTPPort:        getEnvInt("HTTP_PORT", 3000),
		Backend:         strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		DBPath:          getEnv("DB_PATH", "./todos.db"),
		DBDebug:         getEnvBool("DB_DEBUG", false),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "todos"),
		MongoCollection: getEnv("MONGO_COLLECTION", "todos"),
		KVStorageDir:    getEnv("KV_STORAGE_DIR", "/tmp/todo-api-kv"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CachePrefix:     getEnv("CACHE_PREFIX", "todo:"),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
		AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AccessLog:       getEnvBool("ACCESS_LOG", true),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Addr is the listen address for the HTTP server.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.HTTPPort)
}

// CacheEnabled reports whether a Redis address was configured.
func (s Server) CacheEnabled() bool {
	return s.RedisAddr != ""
}

// Validate rejects settings the server cannot start with.
func (s Server) Validate() error {
	switch s.Backend {
	case "sqlite", "mongo", "kv":
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be sqlite, mongo or kv", s.Backend)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", s.HTTPPort)
	}
	if s.Backend == "mongo" && s.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required for the mongo backend")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
