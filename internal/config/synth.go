package config

import (
	"fmt"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Synth holds the deploy-time inputs of the infrastructure app. None of
// these values are processed; they are passed through to the resources.
type Synth struct {
	Log Log `yaml:"log"`

	Account string `yaml:"account" env:"CDK_DEFAULT_ACCOUNT"`
	Region  string `yaml:"region" env:"CDK_DEFAULT_REGION"`

	StackName       string `yaml:"stack_name" env:"STACK_NAME" env-default:"DeadmanSwitch"`
	NotificationURL string `yaml:"notification_url" env:"NOTIFICATION_URL" env-required:"true"`
	TableName       string `yaml:"table_name" env:"TABLE_NAME" env-default:"SlackThreadsTTL"`
	EventFilter     string `yaml:"event_filter" env:"PROCESSOR_EVENT_FILTER" env-default:"remove"`
	ProcessorAsset  string `yaml:"processor_asset" env:"PROCESSOR_ASSET_DIR" env-default:"bin/processor"`
	DeadLetterQueue bool   `yaml:"dead_letter_queue" env:"DEAD_LETTER_QUEUE" env-default:"true"`

	// Web service collaborator; skipped when HostedZoneName is empty.
	HostedZoneName   string `yaml:"hosted_zone_name" env:"HOSTED_ZONE_NAME"`
	ServiceHost      string `yaml:"service_host" env:"SERVICE_HOST" env-default:"growthbook"`
	EmailHost        string `yaml:"email_host" env:"EMAIL_HOST"`
	EmailPort        string `yaml:"email_port" env:"EMAIL_PORT" env-default:"587"`
	EmailFromAddress string `yaml:"email_from_address" env:"EMAIL_FROM"`
}

// LoadSynth reads and validates the infrastructure app configuration.
func LoadSynth() (*Synth, error) {
	cfg := &Synth{}
	if err := read(cfg); err != nil {
		return nil, err
	}
	if err := validateEndpoint("NOTIFICATION_URL", cfg.NotificationURL); err != nil {
		return nil, err
	}
	if _, err := domain.ParseEventFilter(cfg.EventFilter); err != nil {
		return nil, fmt.Errorf("PROCESSOR_EVENT_FILTER: %w", err)
	}
	return cfg, nil
}
