package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/snowmerak/pubsub.go/lib/broker"
	"github.com/snowmerak/pubsub.go/lib/logging"
	"github.com/snowmerak/pubsub.go/lib/pipeline"
)

// Config contains the runtime configuration of the run command.
type Config struct {
	Pipeline string // path to a pipeline file, empty uses the built-in one
	LogLevel string
	Strategy string        // overrides the pipeline strategy when set
	Tick     time.Duration // overrides the pipeline tick interval when positive
	RunFor   time.Duration // stop after this long, zero runs until interrupted
	TUI      bool
}

// LoadConfigFromViper builds Config from Viper-bound flags/env.
func LoadConfigFromViper() Config {
	return Config{
		Pipeline: viper.GetString("pipeline"),
		LogLevel: viper.GetString("log_level"),
		Strategy: viper.GetString("strategy"),
		Tick:     viper.GetDuration("tick"),
		RunFor:   viper.GetDuration("run_for"),
		TUI:      viper.GetBool("tui"),
	}
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := broker.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.Tick < 0 {
		return fmt.Errorf("tick cannot be negative")
	}
	if c.RunFor < 0 {
		return fmt.Errorf("run-for cannot be negative")
	}
	return nil
}

// LoadPipeline reads the configured pipeline and applies the command line overrides.
func (c Config) LoadPipeline() (*pipeline.Pipeline, error) {
	p := pipeline.Default()
	if c.Pipeline != "" {
		loaded, err := pipeline.Load(c.Pipeline)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	if c.Strategy != "" {
		p.Strategy = c.Strategy
	}
	if c.Tick > 0 {
		p.Tick.Interval = c.Tick.String()
	}
	return p, nil
}
