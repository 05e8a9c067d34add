package publisher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sns"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/publisher"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) PublishWithContext(_ aws.Context, in *sns.PublishInput, _ ...request.Option) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSPublisher_Publish(t *testing.T) {
	client := &fakeSNS{}
	p := publisher.NewSNSPublisher(client, "arn:aws:sns:eu-west-1:123456789012:SlackThreads")

	id, err := p.Publish(context.Background(), publisher.Publication{
		Key:        domain.RecordKey{ID: "t1", Channel: "c1"},
		Subject:    "record expired",
		Body:       `{"id":"t1","channel":"c1"}`,
		Attributes: map[string]string{"event_name": "REMOVE", "empty": ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("expected message id msg-1, got %q", id)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 publish call, got %d", len(client.inputs))
	}

	in := client.inputs[0]
	if aws.StringValue(in.TopicArn) != "arn:aws:sns:eu-west-1:123456789012:SlackThreads" {
		t.Fatalf("unexpected topic arn %q", aws.StringValue(in.TopicArn))
	}
	if aws.StringValue(in.Subject) != "record expired" {
		t.Fatalf("unexpected subject %q", aws.StringValue(in.Subject))
	}
	for name, want := range map[string]string{"id": "t1", "channel": "c1", "event_name": "REMOVE"} {
		attr, ok := in.MessageAttributes[name]
		if !ok {
			t.Fatalf("missing attribute %q", name)
		}
		if aws.StringValue(attr.StringValue) != want {
			t.Fatalf("attribute %q: expected %q, got %q", name, want, aws.StringValue(attr.StringValue))
		}
	}
	if _, ok := in.MessageAttributes["empty"]; ok {
		t.Fatal("empty attribute values must not be sent")
	}
}

func TestSNSPublisher_OmitsEmptySubject(t *testing.T) {
	client := &fakeSNS{}
	p := publisher.NewSNSPublisher(client, "arn")

	if _, err := p.Publish(context.Background(), publisher.Publication{Body: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.inputs[0].Subject != nil {
		t.Fatal("expected nil subject")
	}
}

func TestSNSPublisher_PropagatesError(t *testing.T) {
	boom := errors.New("throttled")
	p := publisher.NewSNSPublisher(&fakeSNS{err: boom}, "arn")

	_, err := p.Publish(context.Background(), publisher.Publication{Body: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
