package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the yaml client configuration.
type Config struct {
	Signaling struct {
		URL string `yaml:"url"`
	} `yaml:"signaling"`
	Services struct {
		FunctionsURL     string `yaml:"functions_url"`
		SpeechGatewayURL string `yaml:"speech_gateway_url"`
		TimeoutSec       int    `yaml:"timeout_sec"`
	} `yaml:"services"`
	Debate struct {
		TransitionDelaySec int  `yaml:"transition_delay_sec"`
		MicEnabled         bool `yaml:"mic_enabled"`
	} `yaml:"debate"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) serviceTimeout() time.Duration {
	if c.Services.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Services.TimeoutSec) * time.Second
}

func (c *Config) transitionDelay() time.Duration {
	if c.Debate.TransitionDelaySec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Debate.TransitionDelaySec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
