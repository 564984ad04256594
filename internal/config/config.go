package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort     string        `env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBPoolSize  int    `env:"DB_POOL_SIZE" env-default:"25"`

	RedisURL      string        `env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" env-default:"50"`
	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"5m"`
	SessionTTL    time.Duration `env:"SESSION_TTL" env-default:"24h"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	KafkaTopic      string   `env:"KAFKA_TODO_TOPIC" env-default:"todo-activity"`
	KafkaPartitions int      `env:"KAFKA_PARTITIONS" env-default:"4"`

	JWTSecret   string        `env:"JWT_SECRET"`
	APITokenTTL time.Duration `env:"API_TOKEN_TTL" env-default:"24h"`

	CookieSecure bool `env:"COOKIE_SECURE" env-default:"false"`
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// Load reads configuration from the environment. Unlike Get it does not cache,
// so tests can call it after changing env vars.
func Load() (*Config, error) {
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &c, nil
}

// Get returns the application config (loads once from env). Panics on a
// malformed environment; main calls Get first so this fails at startup.
func Get() *Config {
	cfgOnce.Do(func() {
		c, err := Load()
		if err != nil {
			panic(fmt.Sprintf("config: %v", err))
		}
		cfg = c
	})
	return cfg
}
