package publisher

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
)

// SNS is the subset of the AWS Simple Notification Service client in use.
type SNS interface {
	PublishWithContext(aws.Context, *sns.PublishInput, ...request.Option) (*sns.PublishOutput, error)
}

// SNSPublisher publishes to a single managed topic.
type SNSPublisher struct {
	client   SNS
	topicARN string
}

// NewSNSPublisher returns a publisher for topicARN using client.
func NewSNSPublisher(client SNS, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

// NewSNSClient creates an SNS client from the default credential chain.
// An empty region falls back to the environment.
func NewSNSClient(region string) (*sns.SNS, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return sns.New(sess), nil
}

// Publish sends one message carrying the record key as message attributes.
func (p *SNSPublisher) Publish(ctx context.Context, pub Publication) (string, error) {
	input := &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(pub.Body),
		MessageAttributes: messageAttributes(pub),
	}
	if pub.Subject != "" {
		input.Subject = aws.String(pub.Subject)
	}

	out, err := p.client.PublishWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns publish %s: %w", pub.Key, err)
	}
	return aws.StringValue(out.MessageId), nil
}

func messageAttributes(pub Publication) map[string]*sns.MessageAttributeValue {
	attrs := make(map[string]*sns.MessageAttributeValue, len(pub.Attributes)+2)
	for k, v := range pub.Attributes {
		if v == "" {
			continue
		}
		attrs[k] = &sns.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	attrs["id"] = &sns.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(pub.Key.ID)}
	attrs["channel"] = &sns.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(pub.Key.Channel)}
	return attrs
}

// compile-time check that SNSPublisher implements Publisher
var _ Publisher = (*SNSPublisher)(nil)
