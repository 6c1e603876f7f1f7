package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Dispatch  DispatchConfig
	SMS       SMSConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

// RedisConfig covers both the dispatch-summary cache and the poller's
// advisory lock; the lock is why Redis is required.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	LockKey  string
	LockTTL  time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
}

type DispatchConfig struct {
	PoolSize int
}

// SMSConfig holds the provider credentials, loaded once at process start.
type SMSConfig struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	FromNumber string
}

func LoadAll() (*Config, error) {
	l := &loader{}

	cfg := &Config{
		Server: ServerConfig{
			Address: l.get("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: l.must("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			Address:  l.must("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       l.getInt("REDIS_DB", 0),
			TTL:      time.Duration(l.getInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
			LockKey:  l.get("LOCK_KEY", "messaging:poller:lock"),
			LockTTL:  time.Duration(l.getInt("LOCK_TTL_SECONDS", 55)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Interval: time.Duration(l.getInt("SCHED_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Dispatch: DispatchConfig{
			PoolSize: l.getInt("DISPATCH_POOL_SIZE", 10),
		},
		SMS: SMSConfig{
			APIURL:     l.must("SMS_API_URL"),
			AccountSID: l.must("SMS_ACCOUNT_SID"),
			AuthToken:  l.must("SMS_AUTH_TOKEN"),
			FromNumber: l.must("SMS_FROM_NUMBER"),
		},
	}
	if l.err != nil {
		return nil, l.err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHED_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Dispatch.PoolSize <= 0 {
		return fmt.Errorf("DISPATCH_POOL_SIZE must be > 0")
	}
	if cfg.Redis.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be > 0")
	}
	return nil
}

// loader accumulates the first env error so LoadAll reads cleanly.
type loader struct {
	err error
}

func (l *loader) must(key string) string {
	val := os.Getenv(key)
	if val == "" && l.err == nil {
		l.err = fmt.Errorf("missing required env var: %s", key)
	}
	return val
}

func (l *loader) get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (l *loader) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if l.err == nil {
			l.err = fmt.Errorf("invalid int for env %s: %q", key, v)
		}
		return def
	}
	return i
}
