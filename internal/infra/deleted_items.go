package infra

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambdaeventsources"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

const (
	DefaultTableName     = "SlackThreadsTTL"
	DefaultFunctionName  = "SlackThreadsDynamoDeadMansSwitch"
	DefaultRetryAttempts = 10
	ProcessorTimeout     = 30
)

// DeletedItemsToHTTPSProps configures the dead-man's-switch pipeline.
// Only NotificationURL and ProcessorAsset are required.
type DeletedItemsToHTTPSProps struct {
	// NotificationURL receives every expiry notification over HTTPS.
	NotificationURL string
	// ProcessorAsset is a directory holding the compiled processor as "bootstrap".
	ProcessorAsset string

	TableName     string
	FunctionName  string
	EventFilter   domain.EventFilter
	RetryAttempts int
	// DeadLetterQueue keeps batches that exhausted their retries.
	DeadLetterQueue bool
}

func (p *DeletedItemsToHTTPSProps) withDefaults() (DeletedItemsToHTTPSProps, error) {
	out := *p
	if err := domain.ValidateEndpoint(out.NotificationURL); err != nil {
		return out, fmt.Errorf("notification url %q: %w", out.NotificationURL, err)
	}
	if out.ProcessorAsset == "" {
		return out, fmt.Errorf("processor asset directory is required")
	}
	if out.TableName == "" {
		out.TableName = DefaultTableName
	}
	if out.FunctionName == "" {
		out.FunctionName = DefaultFunctionName
	}
	filter, err := domain.ParseEventFilter(string(out.EventFilter))
	if err != nil {
		return out, err
	}
	out.EventFilter = filter
	if out.RetryAttempts <= 0 {
		out.RetryAttempts = DefaultRetryAttempts
	}
	return out, nil
}

// DeletedItemsToHTTPS wires an expiring table's change feed to an HTTPS
// endpoint: table stream → processor function → topic → subscription.
// The stream only targets functions natively, hence the processor hop.
type DeletedItemsToHTTPS struct {
	constructs.Construct

	Table           awsdynamodb.Table
	Topic           awssns.Topic
	Function        awslambda.Function
	DeadLetterQueue awssqs.Queue
}

func NewDeletedItemsToHTTPS(scope constructs.Construct, id string, props *DeletedItemsToHTTPSProps) (*DeletedItemsToHTTPS, error) {
	cfg, err := props.withDefaults()
	if err != nil {
		return nil, err
	}

	// Children attach to the jsii construct, never to the Go wrapper.
	self := constructs.NewConstruct(scope, jsii.String(id))
	c := &DeletedItemsToHTTPS{Construct: self}

	c.Table = awsdynamodb.NewTable(self, jsii.String("SlackThreadsTable"), &awsdynamodb.TableProps{
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String(domain.AttrID),
			Type: awsdynamodb.AttributeType_STRING,
		},
		SortKey: &awsdynamodb.Attribute{
			Name: jsii.String(domain.AttrChannel),
			Type: awsdynamodb.AttributeType_STRING,
		},
		BillingMode:         awsdynamodb.BillingMode_PAY_PER_REQUEST,
		Encryption:          awsdynamodb.TableEncryption_DEFAULT,
		Stream:              awsdynamodb.StreamViewType_KEYS_ONLY,
		TableName:           jsii.String(cfg.TableName),
		TimeToLiveAttribute: jsii.String(domain.TTLAttribute),
	})

	c.Topic = awssns.NewTopic(self, jsii.String("SlackThreads"), nil)

	awssns.NewSubscription(self, jsii.String("Subscription"), &awssns.SubscriptionProps{
		Topic:    c.Topic,
		Endpoint: jsii.String(cfg.NotificationURL),
		Protocol: awssns.SubscriptionProtocol_HTTPS,
	})

	logs := awslogs.NewLogGroup(self, jsii.String("ProcessorLogs"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String("/aws/lambda/" + cfg.FunctionName),
		Retention:     awslogs.RetentionDays_ONE_WEEK,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})

	c.Function = awslambda.NewFunction(self, jsii.String(cfg.FunctionName), &awslambda.FunctionProps{
		FunctionName: jsii.String(cfg.FunctionName),
		Description:  jsii.String("Process DynamoDB records deleted from the " + cfg.TableName + " table"),
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(cfg.ProcessorAsset), nil),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(ProcessorTimeout)),
		Environment: &map[string]*string{
			"SNS_TOPIC_ARN":          c.Topic.TopicArn(),
			"PROCESSOR_EVENT_FILTER": jsii.String(string(cfg.EventFilter)),
			"PUBLISHER_KIND":         jsii.String("sns"),
		},
		LogGroup: logs,
	})

	source := &awslambdaeventsources.DynamoEventSourceProps{
		StartingPosition:   awslambda.StartingPosition_LATEST,
		RetryAttempts:      jsii.Number(float64(cfg.RetryAttempts)),
		BisectBatchOnError: jsii.Bool(true),
		Filters:            feedFilters(cfg.EventFilter),
	}
	if cfg.DeadLetterQueue {
		c.DeadLetterQueue = awssqs.NewQueue(self, jsii.String("ProcessorDLQ"), &awssqs.QueueProps{
			RetentionPeriod: awscdk.Duration_Days(jsii.Number(14)),
			Encryption:      awssqs.QueueEncryption_SQS_MANAGED,
		})
		source.OnFailure = awslambdaeventsources.NewSqsDlq(c.DeadLetterQueue)
	}
	c.Function.AddEventSource(awslambdaeventsources.NewDynamoEventSource(c.Table, source))

	publish := awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("sns:Publish"),
		Resources: &[]*string{c.Topic.TopicArn()},
	})
	c.Function.Role().AttachInlinePolicy(awsiam.NewPolicy(self, jsii.String("sns-publish-policy"), &awsiam.PolicyProps{
		Statements: &[]awsiam.PolicyStatement{publish},
	}))

	return c, nil
}

// feedFilters drops records the processor would skip anyway, so they never
// cost an invocation. The processor keeps its own filter.
func feedFilters(f domain.EventFilter) *[]*map[string]interface{} {
	pattern := map[string]interface{}{
		"eventName": awslambda.FilterRule_IsEqual(jsii.String(string(domain.EventRemove))),
	}
	switch f {
	case domain.FilterAll:
		return nil
	case domain.FilterTTL:
		pattern["userIdentity"] = map[string]interface{}{
			"type":        awslambda.FilterRule_IsEqual(jsii.String(domain.TTLPrincipalType)),
			"principalId": awslambda.FilterRule_IsEqual(jsii.String(domain.TTLPrincipalID)),
		}
	}
	return &[]*map[string]interface{}{awslambda.FilterCriteria_Filter(&pattern)}
}
