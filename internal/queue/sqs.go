// Package queue runs listing searches requested through an SQS queue.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Message is a received queue message.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Client is the subset of SQS the worker needs.
type Client interface {
	Receive(ctx context.Context, queueURL string, max int, wait, visibility time.Duration) ([]Message, error)
	Delete(ctx context.Context, queueURL, receiptHandle string) error
	Send(ctx context.Context, queueURL string, v any) error
}

// SQSClient implements Client on top of the AWS SDK.
type SQSClient struct {
	client *sqs.Client
}

// NewSQSClient wraps an SDK client.
func NewSQSClient(client *sqs.Client) *SQSClient {
	return &SQSClient{client: client}
}

// AWSOptions selects the region and an optional custom endpoint, such as
// LocalStack or ElasticMQ.
type AWSOptions struct {
	Region   string
	Endpoint string
}

// NewAWSClient loads the default AWS configuration (environment, shared
// config files, instance roles) and creates an SQS client.
func NewAWSClient(ctx context.Context, opts AWSOptions) (*sqs.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// Receive long-polls for up to max messages.
func (c *SQSClient) Receive(ctx context.Context, queueURL string, max int, wait, visibility time.Duration) ([]Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(wait / time.Second),
		VisibilityTimeout:   int32(visibility / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete acknowledges a message.
func (c *SQSClient) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Send publishes v as a JSON message.
func (c *SQSClient) Send(ctx context.Context, queueURL string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
