package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	DatabaseDSN    string        `mapstructure:"database_dsn"`
	SigningSecret  string        `mapstructure:"signing_secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TypingTimeout  time.Duration `mapstructure:"typing_timeout"`
	DeliveredDelay time.Duration `mapstructure:"delivered_delay"`
	RingTimeout    time.Duration `mapstructure:"ring_timeout"`
	SendQueueSize  int           `mapstructure:"send_queue_size"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte `mapstructure:"-"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHAT_RELAY")
	v.AutomaticEnv()
	for _, key := range []string{
		"listen_addr", "database_dsn", "signing_secret", "allowed_origins",
		"typing_timeout", "delivered_delay", "ring_timeout", "send_queue_size",
	} {
		v.BindEnv(key)
	}

	v.SetDefault("listen_addr", "localhost:8000")
	v.SetDefault("typing_timeout", "10s")
	v.SetDefault("delivered_delay", "1500ms")
	v.SetDefault("ring_timeout", "45s")
	v.SetDefault("send_queue_size", 256)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	signingKey, err := base64.StdEncoding.DecodeString(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive")
	}

	return nil
}
