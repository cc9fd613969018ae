package nats

import (
	"fmt"
	"net/url"
	"time"

	"message-router/internal/common/validation"
)

type Config struct {
	URL string
	// Queue is the queue group used for the input subscription so replicas share work
	Queue          string
	ConnectTimeout time.Duration
	FlushTimeout   time.Duration
	MaxReconnects  int
}

func (c *Config) Validate() error {
	if c.Queue == "" {
		c.Queue = "message-router"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}

	return validation.NewValidatorWithPrefix("NATS config").
		RequireURL(c.URL, "url").
		Error()
}

func (c *Config) GetType() string {
	return "nats"
}

func (c *Config) GetConnectionString() string {
	if parsed, err := url.Parse(c.URL); err == nil && parsed.Host != "" {
		return fmt.Sprintf("nats://%s", parsed.Host)
	}
	return "nats://***"
}

func DefaultConfig() *Config {
	return &Config{
		URL:            "nats://localhost:4222",
		Queue:          "message-router",
		ConnectTimeout: 5 * time.Second,
		FlushTimeout:   time.Second,
		MaxReconnects:  60,
	}
}
