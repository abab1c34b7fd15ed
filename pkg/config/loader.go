package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv builds a Config from environment variables, falling back to
// each component's defaults. Mirrors the teacher's getEnvOrDefault loader
// shape: every field has an explicit default so a bare environment still
// produces a valid, startable Config.
func LoadFromEnv() *Config {
	cfg := &Config{
		AppName:     getEnvOrDefault("APP_NAME", "conductor"),
		Debug:       getEnvBool("DEBUG", false),
		CORSOrigins: getEnvList("CORS_ORIGINS", nil),

		Server:    loadServerFromEnv(),
		Database:  loadDatabaseFromEnv(),
		Queue:     loadQueueFromEnv(),
		RateLimit: loadRateLimitFromEnv(),
		Scheduler: loadSchedulerFromEnv(),
		A2A:       loadA2AFromEnv(),
		Auth:      AuthConfig{JWTSecret: os.Getenv("JWT_SECRET")},
	}
	return cfg
}

func loadServerFromEnv() ServerConfig {
	s := DefaultServerConfig()
	s.Addr = getEnvOrDefault("SERVER_ADDR", s.Addr)
	s.GracefulShutdownTimeout = getEnvInt("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", s.GracefulShutdownTimeout)
	return s
}

func loadDatabaseFromEnv() DatabaseConfig {
	d := DefaultDatabaseConfig()
	d.Host = getEnvOrDefault("DB_HOST", d.Host)
	d.Port = getEnvInt("DB_PORT", d.Port)
	d.User = getEnvOrDefault("DB_USER", d.User)
	d.Password = getEnvOrDefault("DB_PASSWORD", d.Password)
	d.Name = getEnvOrDefault("DB_NAME", d.Name)
	d.SSLMode = getEnvOrDefault("DB_SSLMODE", d.SSLMode)
	d.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", d.ConnMaxIdleTime)
	return d
}

func loadQueueFromEnv() QueueConfig {
	q := DefaultQueueConfig()
	q.WorkerCount = getEnvInt("QUEUE_WORKER_COUNT", q.WorkerCount)
	q.MaxConcurrentExecutions = getEnvInt("QUEUE_MAX_CONCURRENT_EXECUTIONS", q.MaxConcurrentExecutions)
	q.PollInterval = getEnvDuration("QUEUE_POLL_INTERVAL", q.PollInterval)
	q.PollIntervalJitter = getEnvDuration("QUEUE_POLL_INTERVAL_JITTER", q.PollIntervalJitter)
	q.TaskTimeLimit = getEnvDuration("QUEUE_TASK_TIME_LIMIT", q.TaskTimeLimit)
	q.GracefulShutdownTimeout = getEnvDuration("QUEUE_GRACEFUL_SHUTDOWN_TIMEOUT", q.GracefulShutdownTimeout)
	q.OrphanDetectionInterval = getEnvDuration("QUEUE_ORPHAN_DETECTION_INTERVAL", q.OrphanDetectionInterval)
	q.OrphanThreshold = getEnvDuration("QUEUE_ORPHAN_THRESHOLD", q.OrphanThreshold)
	q.MaxRetries = getEnvInt("QUEUE_MAX_RETRIES", q.MaxRetries)
	return q
}

func loadRateLimitFromEnv() RateLimitConfig {
	r := DefaultRateLimitConfig()
	r.RedisURL = getEnvOrDefault("REDIS_URL", r.RedisURL)
	r.DefaultWindow = getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", r.DefaultWindow)
	return r
}

func loadSchedulerFromEnv() SchedulerConfig {
	s := DefaultSchedulerConfig()
	s.ReconcileInterval = getEnvDuration("SCHEDULER_RECONCILE_INTERVAL", s.ReconcileInterval)
	return s
}

func loadA2AFromEnv() A2AConfig {
	a := DefaultA2AConfig()
	a.BaseURL = getEnvOrDefault("A2A_BASE_URL", a.BaseURL)
	a.ProtocolVersion = getEnvOrDefault("A2A_PROTOCOL_VERSION", a.ProtocolVersion)
	a.ClientTimeout = getEnvInt("A2A_CLIENT_TIMEOUT_SECONDS", a.ClientTimeout)
	return a
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
