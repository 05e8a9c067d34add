package config

import (
	"fmt"
	"time"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Publisher kinds understood by the processor.
const (
	PublisherSNS  = "sns"
	PublisherHTTP = "http"
)

// Processor holds the change-feed processor configuration. It is injected
// into the function environment at deploy time.
type Processor struct {
	Log Log `yaml:"log"`

	TopicARN    string `yaml:"topic_arn" env:"SNS_TOPIC_ARN"`
	EventFilter string `yaml:"event_filter" env:"PROCESSOR_EVENT_FILTER" env-default:"remove"`

	// Publisher selects the bus client: sns for the managed bus, http for
	// the self-hosted notifier.
	Publisher      string        `yaml:"publisher" env:"PUBLISHER_KIND" env-default:"sns"`
	AWSRegion      string        `yaml:"aws_region" env:"AWS_REGION"`
	NotifierURL    string        `yaml:"notifier_url" env:"NOTIFIER_PUBLISH_URL"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"PUBLISH_TIMEOUT" env-default:"5s"`

	// Filter is derived from EventFilter by LoadProcessor.
	Filter domain.EventFilter `yaml:"-" env:"-"`
}

// LoadProcessor reads and validates the processor configuration.
func LoadProcessor() (*Processor, error) {
	cfg := &Processor{}
	if err := read(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combination of settings and fills Filter.
func (c *Processor) Validate() error {
	filter, err := domain.ParseEventFilter(c.EventFilter)
	if err != nil {
		return err
	}
	c.Filter = filter

	switch c.Publisher {
	case PublisherSNS:
		if c.TopicARN == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required")
		}
	case PublisherHTTP:
		if c.NotifierURL == "" {
			return fmt.Errorf("NOTIFIER_PUBLISH_URL is required")
		}
	default:
		return fmt.Errorf("unknown publisher kind %q", c.Publisher)
	}
	return nil
}
