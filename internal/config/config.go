// Package config loads the gateway configuration from a JSON file and
// watches it for changes.
package config

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Config maps directly to the config.json file.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `json:"listen_addr"`
	// ProviderType selects the transport adapter ("bridge" or "loopback").
	ProviderType string `json:"provider_type"`
	// GatewayURL is the websocket base URL of the transport gateway,
	// required when ProviderType is "bridge".
	GatewayURL string `json:"gateway_url"`
	// WebhookURL receives one POST per normalized inbound message.
	// Empty disables forwarding.
	WebhookURL string `json:"webhook_url"`
	// WebhookTimeoutMs bounds a single webhook delivery.
	WebhookTimeoutMs int `json:"webhook_timeout_ms"`
	// CountryCode is prefixed onto bare local numbers before sending.
	CountryCode string `json:"country_code"`
	// BatchSize caps concurrent session bring-ups.
	BatchSize int `json:"batch_size"`
	// BatchDelayMs is the pause between bring-up batches.
	BatchDelayMs int `json:"batch_delay_ms"`
	// RetryDelayMs is the fixed wait before a reconnect attempt.
	RetryDelayMs int `json:"retry_delay_ms"`
	// ConnectTimeoutMs is the ceiling for one connect attempt.
	ConnectTimeoutMs int `json:"connect_timeout_ms"`
	// DatabasePath is the sqlite file holding tenant records.
	DatabasePath string `json:"database_path"`
	// LogLevel sets the minimum severity for log output.
	// Accepted values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
	// IgnoredMessageTypes overrides the built-in list of raw inbound
	// types dropped before normalization.
	IgnoredMessageTypes []string `json:"ignored_message_types"`
}

// Default returns a Config with safe fallback values so the gateway can
// start without a config file.
func Default() *Config {
	return &Config{
		ListenAddr:       ":8080",
		ProviderType:     "bridge",
		GatewayURL:       "ws://localhost:8081",
		WebhookTimeoutMs: 50000,
		CountryCode:      "593",
		BatchSize:        3,
		BatchDelayMs:     5000,
		RetryDelayMs:     5000,
		ConnectTimeoutMs: 120000,
		DatabasePath:     "chasqui.db",
		LogLevel:         "info",
	}
}

// Validate ensures the configuration can actually drive the gateway.
func (c *Config) Validate() error {
	if c.ProviderType == "" {
		return fmt.Errorf("mandatory 'provider_type' configuration is missing")
	}
	if c.ProviderType == "bridge" && c.GatewayURL == "" {
		return fmt.Errorf("'gateway_url' is required when provider_type is 'bridge'")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("mandatory 'listen_addr' configuration is missing")
	}
	return nil
}

// Load reads and parses the JSON configuration file at path. Missing file
// yields defaults; a present but malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) WebhookTimeout() time.Duration { return millis(c.WebhookTimeoutMs) }
func (c *Config) BatchDelay() time.Duration     { return millis(c.BatchDelayMs) }
func (c *Config) RetryDelay() time.Duration     { return millis(c.RetryDelayMs) }
func (c *Config) ConnectTimeout() time.Duration { return millis(c.ConnectTimeoutMs) }

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
