package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AdminCodename     string        `env:"ADMIN_CODENAME,required=true"`
	AdminPassword     string        `env:"ADMIN_PASSWORD,required=true"`

	PoolID          string        `env:"POOL_ID,required=true"`
	DrawLockTTL     time.Duration `env:"DRAW_LOCK_TTL,required=true"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL,required=true"`

	// RequiredPayers fixes the settlement quorum per slot. Zero means
	// "every other active member" is computed from the directory.
	RequiredPayers int `env:"REQUIRED_PAYERS"`

	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`

	ChatWebhookURL string `env:"CHAT_WEBHOOK_URL"`

	// DebugPort exposes the badger HTML inspector when non-zero.
	DebugPort int `env:"DEBUG_PORT"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
