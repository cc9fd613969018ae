// Package config loads the message router configuration from environment
// variables. A .env file, when present, is loaded by the caller before Load.
//
// Router settings:
//   - ROUTER_EXPRESSION: route expression (default: headers['routeTo'])
//   - ROUTER_SCRIPT: path to a JavaScript route script, wins over the expression
//   - ROUTER_REFRESH_DELAY: how often the script file is polled (default: 60s, 0 disables)
//   - ROUTER_DESTINATION_MAPPINGS: key=value pairs separated by newlines, commas or semicolons
//   - ROUTER_DEFAULT_OUTPUT_CHANNEL: destination for messages no key resolved
//   - ROUTER_RESOLUTION_REQUIRED: fail instead of discarding unresolvable keys (default: false)
//   - ROUTER_VARIABLES / ROUTER_VARIABLES_LOCATION: script variables, inline and from a file
//   - ROUTER_DYNAMIC_DESTINATIONS: comma separated allow-list of destination names
//   - ROUTER_INPUT: topic or queue the router consumes (default: input)
//   - ROUTER_INPUT_RATE_LIMIT: inbound messages per second, 0 is unlimited
//   - ROUTER_ERROR_DESTINATION: destination receiving messages the router failed on
//
// Broker settings:
//   - BROKER_TYPE: memory, redis, rabbitmq, kafka, aws, gcp or nats (default: memory)
//   - BROKER_CONNECT_ATTEMPTS, BROKER_CONNECT_DELAY: startup connection retries (default: 5, 1s)
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE, REDIS_STREAM_MAXLEN
//   - RABBITMQ_URL, RABBITMQ_EXCHANGE, RABBITMQ_PREFETCH
//   - KAFKA_BROKERS, KAFKA_GROUP_ID, KAFKA_CLIENT_ID, KAFKA_SECURITY_PROTOCOL,
//     KAFKA_SASL_MECHANISM, KAFKA_SASL_USERNAME, KAFKA_SASL_PASSWORD
//   - AWS_REGION, AWS_SERVICE, AWS_ENDPOINT, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN
//   - GCP_PROJECT_ID, GCP_CREDENTIALS_PATH, GCP_SUBSCRIPTION_ID
//   - NATS_URL, NATS_QUEUE
//   - MEMORY_BUFFER_SIZE
//   - MEMORY_HISTORY_SIZE
//   - CIRCUIT_BREAKER_MAX_FAILURES, CIRCUIT_BREAKER_TIMEOUT
//
// Process settings:
//   - HTTP_PORT: health and metrics port (default: 8080, empty disables the server)
//   - LOG_LEVEL, LOG_FORMAT, LOG_FILE: read by the logging package
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid configuration: %v", err)
//	}
//	routerConfig, err := cfg.RouterConfig()
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"message-router/internal/binder"
	"message-router/internal/brokers"
	"message-router/internal/brokers/aws"
	"message-router/internal/brokers/gcp"
	"message-router/internal/brokers/kafka"
	"message-router/internal/brokers/memory"
	"message-router/internal/brokers/nats"
	"message-router/internal/brokers/rabbitmq"
	"message-router/internal/brokers/redis"
	"message-router/internal/circuitbreaker"
	"message-router/internal/common/errors"
	"message-router/internal/common/ratelimit"
	"message-router/internal/common/retry"
	"message-router/internal/common/validation"
	"message-router/internal/routing"
)

// Config holds every setting of the router process. Values stay as loaded from
// the environment; the typed configs of the components are derived on demand.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" validate:"omitempty,numeric"`

	// Router
	Expression          string        `env:"ROUTER_EXPRESSION"`
	Script              string        `env:"ROUTER_SCRIPT"`
	RefreshDelay        time.Duration `env:"ROUTER_REFRESH_DELAY"`
	Mappings            string        `env:"ROUTER_DESTINATION_MAPPINGS"`
	DefaultDestination  string        `env:"ROUTER_DEFAULT_OUTPUT_CHANNEL" validate:"omitempty,destination_name"`
	ResolutionRequired  bool          `env:"ROUTER_RESOLUTION_REQUIRED"`
	Variables           string        `env:"ROUTER_VARIABLES"`
	VariablesLocation   string        `env:"ROUTER_VARIABLES_LOCATION"`
	DynamicDestinations string        `env:"ROUTER_DYNAMIC_DESTINATIONS"`

	// Inbound binding
	Input            string  `env:"ROUTER_INPUT" validate:"destination_name"`
	InputRateLimit   float64 `env:"ROUTER_INPUT_RATE_LIMIT" validate:"min=0"`
	ErrorDestination string  `env:"ROUTER_ERROR_DESTINATION" validate:"omitempty,destination_name"`

	BrokerType string `env:"BROKER_TYPE" validate:"broker_type"`
	// Startup waits for the broker with exponential backoff
	BrokerConnectAttempts int           `env:"BROKER_CONNECT_ATTEMPTS" validate:"min=1"`
	BrokerConnectDelay    time.Duration `env:"BROKER_CONNECT_DELAY"`

	// Redis streams
	RedisAddress      string `env:"REDIS_ADDRESS"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisDB           int    `env:"REDIS_DB" validate:"min=0,max=15"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE" validate:"min=1"`
	RedisStreamMaxLen int64  `env:"REDIS_STREAM_MAXLEN"`

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE"`
	RabbitMQPrefetch int    `env:"RABBITMQ_PREFETCH"`

	KafkaBrokers          string `env:"KAFKA_BROKERS"`
	KafkaGroupID          string `env:"KAFKA_GROUP_ID"`
	KafkaClientID         string `env:"KAFKA_CLIENT_ID"`
	KafkaSecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL"`
	KafkaSASLMechanism    string `env:"KAFKA_SASL_MECHANISM"`
	KafkaSASLUsername     string `env:"KAFKA_SASL_USERNAME"`
	KafkaSASLPassword     string `env:"KAFKA_SASL_PASSWORD"`

	// AWS SQS / SNS
	AWSRegion          string `env:"AWS_REGION"`
	AWSService         string `env:"AWS_SERVICE"`
	AWSEndpoint        string `env:"AWS_ENDPOINT"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSSessionToken    string `env:"AWS_SESSION_TOKEN"`

	// GCP Pub/Sub
	GCPProjectID       string `env:"GCP_PROJECT_ID"`
	GCPCredentialsPath string `env:"GCP_CREDENTIALS_PATH"`
	GCPSubscriptionID  string `env:"GCP_SUBSCRIPTION_ID"`

	NATSURL   string `env:"NATS_URL"`
	NATSQueue string `env:"NATS_QUEUE"`

	MemoryBufferSize  int `env:"MEMORY_BUFFER_SIZE"`
	MemoryHistorySize int `env:"MEMORY_HISTORY_SIZE"`

	// Outbound circuit breakers
	BreakerMaxFailures int           `env:"CIRCUIT_BREAKER_MAX_FAILURES"`
	BreakerTimeout     time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT"`
}

// Load reads the configuration from the environment. It does not validate.
func Load() *Config {
	return &Config{
		HTTPPort: lookupEnv("HTTP_PORT", "8080"),

		Expression:          getEnv("ROUTER_EXPRESSION", routing.DefaultExpression),
		Script:              getEnv("ROUTER_SCRIPT", ""),
		RefreshDelay:        getDurationEnv("ROUTER_REFRESH_DELAY", 60*time.Second),
		Mappings:            getEnv("ROUTER_DESTINATION_MAPPINGS", ""),
		DefaultDestination:  strings.TrimSpace(getEnv("ROUTER_DEFAULT_OUTPUT_CHANNEL", "")),
		ResolutionRequired:  getBoolEnv("ROUTER_RESOLUTION_REQUIRED", false),
		Variables:           getEnv("ROUTER_VARIABLES", ""),
		VariablesLocation:   getEnv("ROUTER_VARIABLES_LOCATION", ""),
		DynamicDestinations: getEnv("ROUTER_DYNAMIC_DESTINATIONS", ""),

		Input:            getEnv("ROUTER_INPUT", "input"),
		InputRateLimit:   getFloatEnv("ROUTER_INPUT_RATE_LIMIT", 0),
		ErrorDestination: strings.TrimSpace(getEnv("ROUTER_ERROR_DESTINATION", "")),

		BrokerType:            strings.ToLower(getEnv("BROKER_TYPE", "memory")),
		BrokerConnectAttempts: getIntEnv("BROKER_CONNECT_ATTEMPTS", 5),
		BrokerConnectDelay:    getDurationEnv("BROKER_CONNECT_DELAY", time.Second),

		RedisAddress:      getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),
		RedisPoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
		RedisStreamMaxLen: int64(getIntEnv("REDIS_STREAM_MAXLEN", 0)),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", ""),
		RabbitMQPrefetch: getIntEnv("RABBITMQ_PREFETCH", 10),

		KafkaBrokers:          getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaGroupID:          getEnv("KAFKA_GROUP_ID", "message-router-group"),
		KafkaClientID:         getEnv("KAFKA_CLIENT_ID", "message-router"),
		KafkaSecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		KafkaSASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", ""),
		KafkaSASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		KafkaSASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSService:         strings.ToLower(getEnv("AWS_SERVICE", aws.ServiceSQS)),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:    getEnv("AWS_SESSION_TOKEN", ""),

		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		GCPCredentialsPath: getEnv("GCP_CREDENTIALS_PATH", ""),
		GCPSubscriptionID:  getEnv("GCP_SUBSCRIPTION_ID", ""),

		NATSURL:   getEnv("NATS_URL", "nats://localhost:4222"),
		NATSQueue: getEnv("NATS_QUEUE", "message-router"),

		MemoryBufferSize:  getIntEnv("MEMORY_BUFFER_SIZE", 256),
		MemoryHistorySize: getIntEnv("MEMORY_HISTORY_SIZE", 1000),

		BreakerMaxFailures: getIntEnv("CIRCUIT_BREAKER_MAX_FAILURES", 5),
		BreakerTimeout:     getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
	}
}

// Validate checks struct tags first, then the rules spanning several fields.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	v := validation.NewValidatorWithPrefix("config")
	v.Validate(func() error {
		if c.RefreshDelay < 0 {
			return fmt.Errorf("ROUTER_REFRESH_DELAY must not be negative, got %s", c.RefreshDelay)
		}
		return nil
	})
	v.ValidateIf(c.Script == "", func() error {
		if strings.TrimSpace(c.Expression) == "" {
			return fmt.Errorf("ROUTER_EXPRESSION must not be empty when no ROUTER_SCRIPT is set")
		}
		return nil
	})
	v.ValidateIf(c.HTTPPort != "", func() error {
		if port, err := strconv.Atoi(c.HTTPPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("HTTP_PORT must be a valid port number between 1 and 65535")
		}
		return nil
	})
	v.ValidateIf(c.ErrorDestination != "", func() error {
		if c.ErrorDestination == c.Input {
			return fmt.Errorf("ROUTER_ERROR_DESTINATION must differ from ROUTER_INPUT")
		}
		return nil
	})
	v.Validate(func() error {
		_, err := routing.ParseMappings(c.Mappings)
		return err
	})
	v.Validate(func() error {
		rateLimit := c.rateLimit()
		return rateLimit.Validate()
	})
	v.Validate(func() error {
		return c.breakerConfig().Validate()
	})
	if err := v.Error(); err != nil {
		return err
	}

	// broker specific requirements are owned by the broker configs
	brokerConfig, err := c.BrokerConfig()
	if err != nil {
		return err
	}
	return brokerConfig.Validate()
}

// BrokerConfig builds the typed config of the selected broker.
func (c *Config) BrokerConfig() (brokers.BrokerConfig, error) {
	switch c.BrokerType {
	case "memory":
		cfg := memory.DefaultConfig()
		cfg.BufferSize = c.MemoryBufferSize
		cfg.HistorySize = c.MemoryHistorySize
		return cfg, nil

	case "redis":
		cfg := redis.DefaultConfig()
		cfg.Address = c.RedisAddress
		cfg.Password = c.RedisPassword
		cfg.DB = c.RedisDB
		cfg.PoolSize = c.RedisPoolSize
		cfg.StreamMaxLen = c.RedisStreamMaxLen
		return cfg, nil

	case "rabbitmq":
		return &rabbitmq.Config{
			URL:      c.RabbitMQURL,
			Exchange: c.RabbitMQExchange,
			Prefetch: c.RabbitMQPrefetch,
		}, nil

	case "kafka":
		cfg := kafka.DefaultConfig()
		cfg.Brokers = splitList(c.KafkaBrokers)
		cfg.GroupID = c.KafkaGroupID
		cfg.ClientID = c.KafkaClientID
		cfg.SecurityProtocol = c.KafkaSecurityProtocol
		cfg.SASLMechanism = c.KafkaSASLMechanism
		cfg.SASLUsername = c.KafkaSASLUsername
		cfg.SASLPassword = c.KafkaSASLPassword
		return cfg, nil

	case "aws":
		cfg := aws.DefaultConfig()
		cfg.Region = c.AWSRegion
		cfg.Service = c.AWSService
		cfg.Endpoint = c.AWSEndpoint
		cfg.AccessKeyID = c.AWSAccessKeyID
		cfg.SecretAccessKey = c.AWSSecretAccessKey
		cfg.SessionToken = c.AWSSessionToken
		return cfg, nil

	case "gcp":
		cfg := gcp.DefaultConfig()
		cfg.ProjectID = c.GCPProjectID
		cfg.CredentialsPath = c.GCPCredentialsPath
		cfg.SubscriptionID = c.GCPSubscriptionID
		return cfg, nil

	case "nats":
		cfg := nats.DefaultConfig()
		cfg.URL = c.NATSURL
		cfg.Queue = c.NATSQueue
		return cfg, nil
	}
	return nil, errors.ConfigError(fmt.Sprintf("unsupported broker type: %s", c.BrokerType))
}

// RouterConfig parses mappings and loads script variables.
func (c *Config) RouterConfig() (routing.Config, error) {
	mappings, err := routing.ParseMappings(c.Mappings)
	if err != nil {
		return routing.Config{}, err
	}

	var variables map[string]string
	if c.Script != "" {
		variables, err = routing.LoadVariables(c.Variables, c.VariablesLocation)
		if err != nil {
			return routing.Config{}, err
		}
	}

	return routing.Config{
		Expression:         c.Expression,
		Script:             c.Script,
		RefreshDelay:       c.RefreshDelay,
		Variables:          variables,
		Mappings:           mappings,
		DefaultDestination: c.DefaultDestination,
		ResolutionRequired: c.ResolutionRequired,
	}, nil
}

// AllowedDestinations returns the dynamic destination allow-list; nil allows any name.
func (c *Config) AllowedDestinations() []string {
	return splitList(c.DynamicDestinations)
}

func (c *Config) InputConfig() binder.InputConfig {
	return binder.InputConfig{
		Topic:            c.Input,
		ErrorDestination: c.ErrorDestination,
		RateLimit:        c.rateLimit(),
	}
}

// ConnectRetry retries broker creation only while the failure is a connection error
func (c *Config) ConnectRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.BrokerConnectAttempts
	if c.BrokerConnectDelay > 0 {
		cfg.InitialDelay = c.BrokerConnectDelay
	}
	cfg.Retryable = func(err error) bool {
		return errors.IsType(err, errors.ErrTypeConnection)
	}
	return cfg
}

func (c *Config) CircuitBreakerConfig() circuitbreaker.Config {
	return c.breakerConfig()
}

func (c *Config) rateLimit() ratelimit.Config {
	return ratelimit.PerSecond(c.InputRateLimit)
}

func (c *Config) breakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig()
	cfg.MaxFailures = c.BreakerMaxFailures
	cfg.Timeout = c.BreakerTimeout
	return cfg
}

// splitList splits a comma separated list, dropping blanks and duplicates
func splitList(raw string) []string {
	items := lo.Uniq(lo.Compact(lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})))
	if len(items) == 0 {
		return nil
	}
	return items
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv keeps an explicitly empty value, which getEnv replaces with the default
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getBoolEnv accepts strconv.ParseBool spellings; anything else yields the default
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") and bare milliseconds ("1500")
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(millis) * time.Millisecond
	}
	return defaultValue
}
