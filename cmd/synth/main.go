package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/config"
	"github.com/notifyhub/deadman-switch/internal/infra"
)

func main() {
	cfg, err := config.LoadSynth()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	err = synth(awscdk.NewApp(nil), cfg, logger)
	// The jsii kernel child process must be stopped before exiting.
	jsii.Close()
	if err != nil {
		logger.Error("synth failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// synth builds the stack into app and writes the cloud assembly.
func synth(app awscdk.App, cfg *config.Synth, logger *zap.Logger) error {
	stack, err := infra.NewStack(app, cfg)
	if err != nil {
		return fmt.Errorf("build stack: %w", err)
	}

	logger.Info("synthesizing",
		zap.String("stack", cfg.StackName),
		zap.String("table", cfg.TableName),
		zap.Bool("web_service", stack.Web != nil),
	)
	app.Synth(nil)
	return nil
}
