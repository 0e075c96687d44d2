package producer

import (
	"strings"
	"testing"
)

func TestNewProducerValidation(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		errMsg  string
	}{
		{
			name:    "empty brokers",
			brokers: "",
			topic:   "alerts.normalized",
			errMsg:  "brokers cannot be empty",
		},
		{
			name:    "empty topic",
			brokers: "localhost:9092",
			topic:   "",
			errMsg:  "topic cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProducer(tt.brokers, tt.topic)
			if err == nil {
				t.Fatal("NewProducer() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("NewProducer() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestNewDeadLetterProducerValidation(t *testing.T) {
	if _, err := NewDeadLetterProducer("", "alerts.deadletter"); err == nil {
		t.Fatal("NewDeadLetterProducer() error = nil, want error for empty brokers")
	}
	if _, err := NewDeadLetterProducer("localhost:9092", ""); err == nil {
		t.Fatal("NewDeadLetterProducer() error = nil, want error for empty topic")
	}
}
