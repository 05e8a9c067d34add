package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/config"
	"github.com/notifyhub/deadman-switch/internal/processor"
	"github.com/notifyhub/deadman-switch/internal/publisher"
)

func main() {
	cfg, err := config.LoadProcessor()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	var pub publisher.Publisher
	switch cfg.Publisher {
	case config.PublisherHTTP:
		pub = publisher.NewHTTPPublisher(cfg.NotifierURL, cfg.PublishTimeout)
	default:
		client, err := publisher.NewSNSClient(cfg.AWSRegion)
		if err != nil {
			logger.Fatal("failed to create sns client", zap.Error(err))
		}
		pub = publisher.NewSNSPublisher(client, cfg.TopicARN)
	}

	h := processor.NewHandler(pub, cfg.Filter, logger)
	logger.Info("processor ready",
		zap.String("publisher", cfg.Publisher),
		zap.String("filter", string(cfg.Filter)),
	)
	lambda.Start(h.Handle)
}
