package rabbitmq

import (
	"fmt"
	"net/url"

	"message-router/internal/common/validation"
)

type Config struct {
	URL      string `env:"RABBITMQ_URL" validate:"required,url"`
	PoolSize int    `env:"RABBITMQ_POOL_SIZE" validate:"min=1,max=100"`
	// Exchange is optional; when set, destinations are queues bound to this direct exchange
	Exchange string `env:"RABBITMQ_EXCHANGE"`
	Prefetch int    `env:"RABBITMQ_PREFETCH" validate:"min=0,max=65535"`
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 10
	}
	return validation.ValidateStruct(c)
}

// GetConnectionString strips credentials
func (c *Config) GetConnectionString() string {
	if parsedURL, err := url.Parse(c.URL); err == nil && parsedURL.Host != "" {
		return fmt.Sprintf("amqp://%s%s", parsedURL.Host, parsedURL.Path)
	}
	return "amqp://***"
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
