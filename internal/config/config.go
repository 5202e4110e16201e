package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JudgeBaseURL     string
	JudgeAPIKey      string
	JudgePollEvery   time.Duration
	JudgeMaxPolls    int
	JudgeCPULimit    time.Duration
	JudgeMemoryMB    int
	LeaderboardTTL   time.Duration
	SessionRateMax   int
	SessionRateEvery time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASSESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Assess API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("judge.poll_interval", "1s")
	v.SetDefault("judge.max_polls", 30)
	v.SetDefault("judge.cpu_limit_ms", 2000)
	v.SetDefault("judge.memory_mb", 128)
	v.SetDefault("leaderboard.cache_ttl", "2m")
	v.SetDefault("session.rate_max", 10)
	v.SetDefault("session.rate_window", "1m")

	pollInterval, err := time.ParseDuration(v.GetString("judge.poll_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid judge poll interval: %w", err)
	}

	leaderboardTTL, err := time.ParseDuration(v.GetString("leaderboard.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid leaderboard cache ttl: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("session.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid session rate window: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JudgeBaseURL:     v.GetString("judge.base_url"),
		JudgeAPIKey:      v.GetString("judge.api_key"),
		JudgePollEvery:   pollInterval,
		JudgeMaxPolls:    v.GetInt("judge.max_polls"),
		JudgeCPULimit:    time.Duration(v.GetInt("judge.cpu_limit_ms")) * time.Millisecond,
		JudgeMemoryMB:    v.GetInt("judge.memory_mb"),
		LeaderboardTTL:   leaderboardTTL,
		SessionRateMax:   v.GetInt("session.rate_max"),
		SessionRateEvery: rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.JudgeBaseURL == "" {
		return Config{}, fmt.Errorf("judge base url must be provided")
	}

	if cfg.JudgeMaxPolls <= 0 {
		cfg.JudgeMaxPolls = 30
	}

	if cfg.JudgeMemoryMB <= 0 {
		cfg.JudgeMemoryMB = 128
	}

	return cfg, nil
}
