package gcp

import (
	"fmt"
	"time"

	"message-router/internal/common/validation"
)

type Config struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsPath string
	// SubscriptionID names the input subscription, defaulting to "<topic>-router"
	SubscriptionID         string
	AckDeadline            int
	MaxOutstandingMessages int
	Timeout                time.Duration
}

func (c *Config) Validate() error {
	if c.AckDeadline <= 0 {
		c.AckDeadline = 60
	}
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	v := validation.NewValidatorWithPrefix("GCP Pub/Sub config")
	v.RequireString(c.ProjectID, "project_id")
	v.Validate(func() error {
		if c.AckDeadline < 10 || c.AckDeadline > 600 {
			return fmt.Errorf("ack_deadline must be between 10 and 600 seconds")
		}
		return nil
	})
	v.Validate(func() error {
		if c.CredentialsJSON != "" && c.CredentialsPath != "" {
			return fmt.Errorf("credentials_json and credentials_path are mutually exclusive")
		}
		return nil
	})

	return v.Error()
}

func (c *Config) GetType() string {
	return "gcp"
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("pubsub://projects/%s", c.ProjectID)
}

func DefaultConfig() *Config {
	return &Config{
		AckDeadline:            60,
		MaxOutstandingMessages: 100,
		Timeout:                30 * time.Second,
	}
}
