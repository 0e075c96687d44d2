// Package config provides configuration parsing and validation for the
// collector service.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the collector service.
type Config struct {
	QueueURL        string
	QueueARN        string
	AWSRegion       string
	MaxReceiveCount int

	KafkaBrokers    string
	NormalizedTopic string
	DeadLetterTopic string

	// PostgresDSN is optional. When empty the collector runs stateless and
	// every firing alert is published with the CREATE action.
	PostgresDSN string

	// RedisAddr is optional. When empty duplicate suppression and metrics
	// reporting are disabled.
	RedisAddr string

	Workers   int
	DedupeTTL time.Duration

	DefaultTeam     string
	DefaultPriority string
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.QueueURL == "" {
		return fmt.Errorf("queue-url cannot be empty")
	}
	if c.QueueARN == "" {
		return fmt.Errorf("queue-arn cannot be empty")
	}
	if c.AWSRegion == "" {
		return fmt.Errorf("aws-region cannot be empty")
	}
	if c.MaxReceiveCount < 1 {
		return fmt.Errorf("max-receive-count must be at least 1, got %d", c.MaxReceiveCount)
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.NormalizedTopic == "" {
		return fmt.Errorf("normalized-topic cannot be empty")
	}
	if c.DeadLetterTopic == "" {
		return fmt.Errorf("deadletter-topic cannot be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.DedupeTTL <= 0 {
		return fmt.Errorf("dedupe-ttl must be positive, got %s", c.DedupeTTL)
	}
	if c.DefaultTeam == "" {
		return fmt.Errorf("default-team cannot be empty")
	}
	if c.DefaultPriority == "" {
		return fmt.Errorf("default-priority cannot be empty")
	}
	return nil
}
