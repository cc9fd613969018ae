package memory

import (
	"message-router/internal/common/validation"
)

// Config for the in-process broker. BufferSize bounds each subscriber queue;
// HistorySize bounds the messages kept per destination, oldest dropped first.
type Config struct {
	Name        string
	BufferSize  int
	HistorySize int
}

func (c *Config) Validate() error {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.BufferSize == 0 {
		c.BufferSize = 256
	}
	if c.HistorySize == 0 {
		c.HistorySize = 1000
	}

	return validation.NewValidatorWithPrefix("memory config").
		RequirePositive(c.BufferSize, "buffer_size").
		RequirePositive(c.HistorySize, "history_size").
		Error()
}

func (c *Config) GetType() string {
	return "memory"
}

func (c *Config) GetConnectionString() string {
	return "memory://" + c.Name
}

func DefaultConfig() *Config {
	return &Config{Name: "default", BufferSize: 256, HistorySize: 1000}
}
