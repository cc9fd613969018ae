package kafka

import (
	"fmt"
	"strings"
	"time"

	"message-router/internal/common/validation"

	"github.com/samber/lo"
)

type Config struct {
	Brokers           []string
	ClientID          string
	GroupID           string
	SecurityProtocol  string
	SASLMechanism     string
	SASLUsername      string
	SASLPassword      string
	Timeout           time.Duration
	NumPartitions     int
	ReplicationFactor int
}

func (c *Config) Validate() error {
	c.Brokers = lo.Compact(lo.Map(c.Brokers, func(b string, _ int) string { return strings.TrimSpace(b) }))

	if c.ClientID == "" {
		c.ClientID = "message-router"
	}
	if c.GroupID == "" {
		c.GroupID = "message-router-group"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}
	if c.NumPartitions <= 0 {
		c.NumPartitions = 1
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}

	v := validation.NewValidatorWithPrefix("Kafka config")
	v.Validate(func() error {
		if len(c.Brokers) == 0 {
			return fmt.Errorf("brokers are required")
		}
		return nil
	})
	for _, broker := range c.Brokers {
		v.RequireHostPort(broker, "broker "+broker)
	}
	v.RequireOneOf(c.SecurityProtocol, []string{"PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL"}, "security_protocol")

	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		if c.SASLMechanism == "" {
			c.SASLMechanism = "PLAIN"
		}
		v.RequireOneOf(c.SASLMechanism, []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}, "sasl_mechanism")
		v.RequireString(c.SASLUsername, "sasl_username")
		v.RequireString(c.SASLPassword, "sasl_password")
	}

	return v.Error()
}

func (c *Config) GetType() string {
	return "kafka"
}

func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}

func DefaultConfig() *Config {
	return &Config{
		Brokers:           []string{"localhost:9092"},
		ClientID:          "message-router",
		GroupID:           "message-router-group",
		SecurityProtocol:  "PLAINTEXT",
		Timeout:           30 * time.Second,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}
}
