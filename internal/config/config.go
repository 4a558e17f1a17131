package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string
	DBDSN    string
	DBPool   PoolConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
	Password PasswordConfig
	Log      LogConfig
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MetricsConfig struct {
	Schedule        string // asynq cron spec
	Workers         int    // aggregator pool size within one run
	TaskConcurrency int    // asynq tasks processed at once
	LockTTL         time.Duration
	UniqueTTL       time.Duration
}

type PasswordConfig struct {
	Hasher            string // bcrypt | argon2id
	BcryptCost        int
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
}

type LogConfig struct {
	Level  string
	Format string // console | json
}

// Load reads .env (if present), an optional CONFIG_FILE and the process
// environment, environment winning. It panics when DB_DSN is missing.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		v.SetConfigFile(p)
		_ = v.ReadInConfig()
	}

	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("METRICS_WORKERS", 4)
	v.SetDefault("METRICS_TASK_CONCURRENCY", 2)
	v.SetDefault("METRICS_LOCK_TTL", "10m")
	v.SetDefault("METRICS_UNIQUE_TTL", "5m")
	v.SetDefault("BCRYPT_COST", 12)

	return Config{
		AppPort: get(v, "APP_PORT", "8081"),
		DBDSN:   must(v, "DB_DSN"),
		DBPool: PoolConfig{
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     get(v, "REDIS_ADDR", "localhost:6379"),
			Password: get(v, "REDIS_PASSWORD", ""),
			DB:       v.GetInt("REDIS_DB"),
		},
		Metrics: MetricsConfig{
			Schedule:        get(v, "METRICS_SCHEDULE", "@every 15m"),
			Workers:         v.GetInt("METRICS_WORKERS"),
			TaskConcurrency: v.GetInt("METRICS_TASK_CONCURRENCY"),
			LockTTL:         v.GetDuration("METRICS_LOCK_TTL"),
			UniqueTTL:       v.GetDuration("METRICS_UNIQUE_TTL"),
		},
		Password: PasswordConfig{
			Hasher:            get(v, "PASSWORD_HASHER", "bcrypt"),
			BcryptCost:        v.GetInt("BCRYPT_COST"),
			Argon2Memory:      uint32(v.GetInt("ARGON2_MEMORY")),
			Argon2Iterations:  uint32(v.GetInt("ARGON2_ITERATIONS")),
			Argon2Parallelism: uint8(v.GetInt("ARGON2_PARALLELISM")),
		},
		Log: LogConfig{
			Level:  get(v, "LOG_LEVEL", "info"),
			Format: get(v, "LOG_FORMAT", "console"),
		},
	}
}

func get(v *viper.Viper, k, def string) string {
	s := v.GetString(k)
	if s == "" {
		return def
	}
	return s
}

func must(v *viper.Viper, k string) string {
	s := v.GetString(k)
	if s == "" {
		panic("missing env: " + k)
	}
	return s
}
