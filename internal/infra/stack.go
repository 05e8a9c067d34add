package infra

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/notifyhub/deadman-switch/internal/config"
	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Stack holds the constructs of one deployment. Web is nil when no hosted
// zone is configured.
type Stack struct {
	awscdk.Stack

	Pipeline *DeletedItemsToHTTPS
	Web      *WebService
}

// NewStack builds the pipeline and, when a hosted zone is set, the web
// service into a single stack.
func NewStack(app awscdk.App, cfg *config.Synth) (*Stack, error) {
	props := &awscdk.StackProps{
		Description: jsii.String("Expiring record store with HTTPS dead-man's-switch notifications"),
	}
	if cfg.Account != "" || cfg.Region != "" {
		props.Env = &awscdk.Environment{
			Account: jsii.String(cfg.Account),
			Region:  jsii.String(cfg.Region),
		}
	}
	stack := awscdk.NewStack(app, jsii.String(cfg.StackName), props)
	s := &Stack{Stack: stack}

	pipeline, err := NewDeletedItemsToHTTPS(stack, "DDBDeletedItemsToHTTPS", &DeletedItemsToHTTPSProps{
		NotificationURL: cfg.NotificationURL,
		ProcessorAsset:  cfg.ProcessorAsset,
		TableName:       cfg.TableName,
		EventFilter:     domain.EventFilter(cfg.EventFilter),
		DeadLetterQueue: cfg.DeadLetterQueue,
	})
	if err != nil {
		return nil, err
	}
	s.Pipeline = pipeline

	awscdk.NewCfnOutput(stack, jsii.String("TableName"), &awscdk.CfnOutputProps{Value: pipeline.Table.TableName()})
	awscdk.NewCfnOutput(stack, jsii.String("TopicArn"), &awscdk.CfnOutputProps{Value: pipeline.Topic.TopicArn()})

	if cfg.HostedZoneName == "" {
		return s, nil
	}

	web, err := NewWebService(stack, "Growthbook", &WebServiceProps{
		HostedZoneName:   cfg.HostedZoneName,
		Host:             cfg.ServiceHost,
		EmailHost:        cfg.EmailHost,
		EmailPort:        cfg.EmailPort,
		EmailFromAddress: cfg.EmailFromAddress,
	})
	if err != nil {
		return nil, err
	}
	s.Web = web
	return s, nil
}
