// Package config loads runtime configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Solver struct {
		Backend       string        `env:"SOLVER_BACKEND" envDefault:"interior-point"`
		MaxIterations int           `env:"SOLVER_MAX_ITERATIONS" envDefault:"200"`
		Tolerance     float64       `env:"SOLVER_TOLERANCE" envDefault:"1e-8"`
		Timeout       time.Duration `env:"SOLVER_TIMEOUT" envDefault:"60s"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Development runs default to verbose console logging.
	if cfg.Environment == "development" {
		if cfg.Logging.Level == "info" {
			cfg.Logging.Level = "debug"
		}
		if cfg.Logging.Format == "json" {
			cfg.Logging.Format = "console"
		}
	}

	return cfg, nil
}
