// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the room broker service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/roombroker/internal/broker"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port                    string        `env:"SERVER_PORT,default=:8080" validate:"required"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=16384" validate:"gte=0"`
	MaxTextLength           int           `env:"MAX_TEXT_LENGTH,default=1000" validate:"gte=0"`
	HistoryCapacity         int           `env:"HISTORY_CAPACITY,default=100" validate:"gte=0,lte=100000"`
	RoomIdleTTL             time.Duration `env:"ROOM_IDLE_TTL,default=10m" validate:"gte=0"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gte=0"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"gte=0"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"gte=0"`
	SessionSecret           string        `env:"SESSION_SECRET,required=true" validate:"required,min=16"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gte=0"`
	LogLevel                string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat               string        `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
}

const (
	// frameEnvelope covers the JSON surrounding the text of a send event.
	frameEnvelope = 1024
	// a rune written as an escaped UTF-16 surrogate pair takes 12 bytes
	maxEncodedRuneSize = 12
)

var validate = validator.New()

// DefaultConfig returns a Config populated with default values for all
// settings except the session secret.
func DefaultConfig() Config {
	return Config{
		Port:                    ":8080",
		AllowedOrigins:          "http://localhost:8080",
		MaxMessageSize:          16384,
		MaxTextLength:           broker.DefaultMaxTextLength,
		HistoryCapacity:         broker.DefaultHistoryCapacity,
		RoomIdleTTL:             10 * time.Minute,
		SendBufferSize:          256,
		RateLimitBurst:          5,
		RateLimitRefillInterval: time.Second,
		ShutdownTimeout:         10 * time.Second,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// LoadConfig reads the configuration from the environment, fills in
// defaults and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg.sanitize(), nil
}

// sanitize replaces unset or nonsensical values with defaults.
func (c Config) sanitize() Config {
	def := DefaultConfig()

	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = def.MaxTextLength
	}
	// every text the router accepts must fit in one frame
	if limit := readLimitFor(c.MaxTextLength); c.MaxMessageSize < limit {
		c.MaxMessageSize = limit
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = def.HistoryCapacity
	}
	if c.RoomIdleTTL < 0 {
		c.RoomIdleTTL = 0
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = def.RateLimitBurst
	}
	if c.RateLimitRefillInterval <= 0 {
		c.RateLimitRefillInterval = def.RateLimitRefillInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	return c
}

// RateLimit returns the per-connection rate limiting parameters.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefillInterval}
}

// BrokerConfig returns the settings of the broker core.
func (c Config) BrokerConfig() broker.Config {
	return broker.Config{
		HistoryCapacity: c.HistoryCapacity,
		MaxTextLength:   c.MaxTextLength,
		RoomIdleTTL:     c.RoomIdleTTL,
	}
}

// readLimitFor returns the smallest frame size that holds a send event
// carrying maxText runes in any JSON encoding.
func readLimitFor(maxText int) int64 {
	return int64(maxText)*maxEncodedRuneSize + frameEnvelope
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
