package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds runtime configuration for the session engine.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"exam-session-runtime"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Backend Backend
	Clock   Clock
	Session Session
}

// Backend captures connection info for the examination REST API.
type Backend struct {
	BaseURL     string        `env:"EXAM_BACKEND_URL" envDefault:"http://localhost:9000"`
	HTTPTimeout time.Duration `env:"EXAM_HTTP_TIMEOUT" envDefault:"10s"`
	// Retries on the idempotent remaining-time fetch only.
	TimeFetchRetries uint64 `env:"EXAM_TIME_FETCH_RETRIES" envDefault:"2"`
}

// Clock groups countdown cadence settings. The defaults match the
// reference deployment: poll the server every minute, tick locally every
// second, warn when five minutes remain.
type Clock struct {
	TickInterval   time.Duration `env:"CLOCK_TICK_INTERVAL" envDefault:"1s"`
	SyncInterval   time.Duration `env:"CLOCK_SYNC_INTERVAL" envDefault:"60s"`
	AlarmThreshold time.Duration `env:"CLOCK_ALARM_THRESHOLD" envDefault:"300s"`
}

// Session groups per-session behavior.
type Session struct {
	AutosaveInterval time.Duration `env:"SESSION_AUTOSAVE_INTERVAL" envDefault:"60s"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
