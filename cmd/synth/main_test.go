package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/config"
)

func testConfig(t *testing.T) *config.Synth {
	t.Helper()
	asset := t.TempDir()
	if err := os.WriteFile(filepath.Join(asset, "bootstrap"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return &config.Synth{
		StackName:       "DeadmanSwitch",
		NotificationURL: "https://pipedream.com",
		TableName:       "SlackThreadsTTL",
		EventFilter:     "remove",
		ProcessorAsset:  asset,
	}
}

func TestSynth_WritesTemplate(t *testing.T) {
	out := t.TempDir()
	app := awscdk.NewApp(&awscdk.AppProps{Outdir: jsii.String(out)})

	if err := synth(app, testConfig(t), zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "DeadmanSwitch.template.json")); err != nil {
		t.Fatalf("expected synthesized template: %v", err)
	}
}

func TestSynth_ReturnsStackErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Synth)
	}{
		{"missing processor asset", func(c *config.Synth) { c.ProcessorAsset = "" }},
		{"plain http notification url", func(c *config.Synth) { c.NotificationURL = "http://pipedream.com" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(cfg)
			app := awscdk.NewApp(&awscdk.AppProps{Outdir: jsii.String(t.TempDir())})

			if err := synth(app, cfg, zap.NewNop()); err == nil {
				t.Fatal("expected an error instead of an exit")
			}
		})
	}
}
