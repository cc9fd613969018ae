package redis

import (
	"fmt"
	"time"

	"message-router/internal/common/validation"
)

type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
	// StreamMaxLen caps each stream with approximate trimming; 0 means unbounded
	StreamMaxLen  int64
	ConsumerGroup string
	ConsumerName  string
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.StreamMaxLen < 0 {
		c.StreamMaxLen = 0
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "message-router-group"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = "message-router-consumer"
	}

	return validation.NewValidatorWithPrefix("Redis config").
		RequireHostPort(c.Address, "address").
		RequireNonNegative(c.DB, "db").
		Error()
}

func (c *Config) GetType() string {
	return "redis"
}

// GetConnectionString never includes the password
func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("redis://%s/%d", c.Address, c.DB)
}

func DefaultConfig() *Config {
	return &Config{
		Address:       "localhost:6379",
		PoolSize:      10,
		Timeout:       5 * time.Second,
		ConsumerGroup: "message-router-group",
		ConsumerName:  "message-router-consumer",
	}
}
