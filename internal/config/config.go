package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL    string `validate:"required,url"`
	HTTPListenAddr string `validate:"required"`
	MetricsAddr    string `validate:"required"`
	LogLevel       string
	// ChangePollInterval is how long the dispatcher waits before polling
	// the change stream again after draining it.
	ChangePollInterval time.Duration `validate:"min=10ms"`
	// FlowSweepInterval is how often expired flows are swept out.
	FlowSweepInterval time.Duration `validate:"min=1s"`
	MigrationsDir     string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),
	}

	var err error
	if cfg.ChangePollInterval, err = getDuration("CHANGE_POLL_INTERVAL", 250*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.FlowSweepInterval, err = getDuration("FLOW_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range errs {
			return fmt.Errorf("config field %s failed %q validation", fe.Field(), fe.Tag())
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
