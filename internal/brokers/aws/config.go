package aws

import (
	"fmt"
	"time"

	"message-router/internal/common/validation"
)

const (
	ServiceSQS = "sqs"
	ServiceSNS = "sns"
)

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint overrides the service endpoint, e.g. for localstack
	Endpoint string
	// Service selects what a destination name maps to: an SQS queue or an SNS topic
	Service string

	Timeout           time.Duration
	VisibilityTimeout int32
	WaitTimeSeconds   int32
	MaxMessages       int32
}

func (c *Config) Validate() error {
	if c.Service == "" {
		c.Service = ServiceSQS
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30
	}
	if c.WaitTimeSeconds <= 0 {
		c.WaitTimeSeconds = 20
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 1
	}

	v := validation.NewValidatorWithPrefix("AWS config")
	v.RequireString(c.Region, "region")
	v.RequireOneOf(c.Service, []string{ServiceSQS, ServiceSNS}, "service")
	v.ValidateIf(c.AccessKeyID != "" || c.SecretAccessKey != "", func() error {
		if c.AccessKeyID == "" || c.SecretAccessKey == "" {
			return fmt.Errorf("access_key_id and secret_access_key must be set together")
		}
		return nil
	})
	v.Validate(func() error {
		if c.WaitTimeSeconds > 20 {
			return fmt.Errorf("wait_time_seconds must be at most 20")
		}
		if c.MaxMessages > 10 {
			return fmt.Errorf("max_messages must be at most 10")
		}
		return nil
	})

	return v.Error()
}

func (c *Config) GetType() string {
	return "aws"
}

func (c *Config) GetConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("%s://%s@%s", c.Service, c.Region, c.Endpoint)
	}
	return fmt.Sprintf("%s://%s", c.Service, c.Region)
}

func DefaultConfig() *Config {
	return &Config{
		Region:            "us-east-1",
		Service:           ServiceSQS,
		Timeout:           30 * time.Second,
		VisibilityTimeout: 30,
		WaitTimeSeconds:   20,
		MaxMessages:       1,
	}
}
