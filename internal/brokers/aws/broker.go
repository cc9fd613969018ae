// Package aws publishes routed messages to SQS queues or SNS topics and
// consumes the router input from an SQS queue.
package aws

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

const headerAttributePrefix = "Header_"

// SQSAPI is the subset of the SQS client the broker uses
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
}

// SNSAPI is the subset of the SNS client the broker uses
type SNSAPI interface {
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	sqsClient         SQSAPI
	snsClient         SNSAPI
	connectionManager *base.ConnectionManager
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("aws", config)
	if err != nil {
		return nil, err
	}

	broker := &Broker{
		BaseBroker:        baseBroker,
		connectionManager: base.NewConnectionManager(baseBroker),
	}
	if err := broker.connect(config); err != nil {
		return nil, err
	}
	return broker, nil
}

// NewBrokerWithClients injects pre-built clients
func NewBrokerWithClients(config *Config, sqsClient SQSAPI, snsClient SNSAPI) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("aws", config)
	if err != nil {
		return nil, err
	}

	return &Broker{
		BaseBroker:        baseBroker,
		sqsClient:         sqsClient,
		snsClient:         snsClient,
		connectionManager: base.NewConnectionManager(baseBroker),
	}, nil
}

func (b *Broker) Connect(config brokers.BrokerConfig) error {
	return b.connectionManager.ValidateAndConnect(config, (*Config)(nil), func(validated brokers.BrokerConfig) error {
		return b.connect(validated.(*Config))
	})
}

func (b *Broker) connect(config *Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return errors.ConnectionError("failed to load AWS config", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})

	b.mu.Lock()
	b.sqsClient = sqsClient
	b.snsClient = snsClient
	b.mu.Unlock()
	return nil
}

func (b *Broker) config() *Config {
	return b.GetConfig().(*Config)
}

func (b *Broker) clients() (SQSAPI, SNSAPI) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sqsClient, b.snsClient
}

// Declare creates the queue or topic named destination and returns its URL or ARN.
// Both CreateQueue and CreateTopic are idempotent for identical attributes.
func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	sqsClient, snsClient := b.clients()

	if b.config().Service == ServiceSNS {
		if err := base.StandardHealthCheck(snsClient, "SNS"); err != nil {
			return "", err
		}
		out, err := snsClient.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(destination)})
		if err != nil {
			return "", errors.InternalError("failed to create SNS topic "+destination, err)
		}
		return aws.ToString(out.TopicArn), nil
	}

	if err := base.StandardHealthCheck(sqsClient, "SQS"); err != nil {
		return "", err
	}
	out, err := sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(destination)})
	if err != nil {
		return "", errors.InternalError("failed to create SQS queue "+destination, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.config().Service == ServiceSNS {
		return b.publishToSNS(ctx, message)
	}
	return b.publishToSQS(ctx, message)
}

func (b *Broker) publishToSQS(ctx context.Context, message *brokers.Message) error {
	sqsClient, _ := b.clients()
	if err := base.StandardHealthCheck(sqsClient, "SQS"); err != nil {
		return err
	}

	attributes := make(map[string]sqstypes.MessageAttributeValue, len(message.Headers)+2)
	for key, value := range message.Headers {
		attributes[headerAttributePrefix+sanitizeAttributeName(key)] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	if message.MessageID != "" {
		attributes["MessageID"] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(message.MessageID)}
	}
	attributes["Timestamp"] = sqstypes.MessageAttributeValue{
		DataType:    aws.String("Number"),
		StringValue: aws.String(strconv.FormatInt(message.Timestamp.UnixNano(), 10)),
	}

	result, err := sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(message.Destination),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return errors.InternalError("failed to send message to SQS", err)
	}

	b.GetLogger().Debug("Message sent to SQS",
		logging.String("message_id", aws.ToString(result.MessageId)),
		logging.String("queue_url", message.Destination),
	)
	return nil
}

func (b *Broker) publishToSNS(ctx context.Context, message *brokers.Message) error {
	_, snsClient := b.clients()
	if err := base.StandardHealthCheck(snsClient, "SNS"); err != nil {
		return err
	}

	attributes := make(map[string]snstypes.MessageAttributeValue, len(message.Headers)+1)
	for key, value := range message.Headers {
		attributes[headerAttributePrefix+sanitizeAttributeName(key)] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	if message.MessageID != "" {
		attributes["MessageID"] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(message.MessageID)}
	}

	result, err := snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(message.Destination),
		Message:           aws.String(string(message.Body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return errors.InternalError("failed to publish message to SNS", err)
	}

	b.GetLogger().Debug("Message published to SNS",
		logging.String("message_id", aws.ToString(result.MessageId)),
		logging.String("topic_arn", message.Destination),
	)
	return nil
}

// Subscribe long-polls the SQS queue named topic. Messages are deleted only
// after the handler succeeds; failures reappear after the visibility timeout.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	sqsClient, _ := b.clients()
	if err := base.StandardHealthCheck(sqsClient, "SQS"); err != nil {
		return err
	}

	queueURL := topic
	if !strings.HasPrefix(topic, "http") {
		out, err := sqsClient.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(topic)})
		if err != nil {
			return errors.NotFoundError("SQS queue "+topic).WithContext("cause", err.Error())
		}
		queueURL = aws.ToString(out.QueueUrl)
	}

	config := b.config()
	messageHandler := base.NewMessageHandler(handler, b.GetLogger(), "aws", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.GetLogger().Info("SQS subscription cancelled", logging.String("queue_url", queueURL))
				return
			default:
			}

			out, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:              aws.String(queueURL),
				MaxNumberOfMessages:   config.MaxMessages,
				WaitTimeSeconds:       config.WaitTimeSeconds,
				VisibilityTimeout:     config.VisibilityTimeout,
				MessageAttributeNames: []string{"All"},
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.GetLogger().Error("SQS receive failed", err, logging.String("queue_url", queueURL))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, msg := range out.Messages {
				incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), convertSQSMessage(msg, queueURL))
				if !messageHandler.Handle(incoming) {
					continue
				}
				if _, err := sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(queueURL),
					ReceiptHandle: msg.ReceiptHandle,
				}); err != nil {
					b.GetLogger().Error("Failed to delete SQS message", err, logging.String("message_id", incoming.ID))
				}
			}
		}
	}()

	return nil
}

func (b *Broker) Health() error {
	sqsClient, snsClient := b.clients()
	if b.config().Service == ServiceSNS {
		return base.StandardHealthCheck(snsClient, "SNS")
	}
	if err := base.StandardHealthCheck(sqsClient, "SQS"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config().Timeout)
	defer cancel()
	if _, err := sqsClient.ListQueues(ctx, &sqs.ListQueuesInput{MaxResults: aws.Int32(1)}); err != nil {
		return errors.ConnectionError("SQS health check failed", err)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sqsClient = nil
	b.snsClient = nil
	return nil
}

func convertSQSMessage(msg sqstypes.Message, queueURL string) base.MessageData {
	headers := make(map[string]string)
	var timestamp time.Time
	id := aws.ToString(msg.MessageId)

	for name, attr := range msg.MessageAttributes {
		value := aws.ToString(attr.StringValue)
		switch {
		case strings.HasPrefix(name, headerAttributePrefix):
			headers[strings.TrimPrefix(name, headerAttributePrefix)] = value
		case name == "MessageID":
			id = value
		case name == "Timestamp":
			if ns, err := strconv.ParseInt(value, 10, 64); err == nil {
				timestamp = time.Unix(0, ns)
			}
		}
	}

	return base.MessageData{
		ID:        id,
		Headers:   headers,
		Body:      []byte(aws.ToString(msg.Body)),
		Timestamp: timestamp,
		Metadata: map[string]interface{}{
			"queue_url":      queueURL,
			"receipt_handle": aws.ToString(msg.ReceiptHandle),
		},
	}
}

// SQS attribute names allow alphanumerics, '-', '_' and '.'
func sanitizeAttributeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
